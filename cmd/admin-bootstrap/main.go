// Command admin-bootstrap creates the first super admin of a fresh
// deployment. The account has to change its password on first login.
package main

import (
	"context"
	"errors"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/iliyamo/car-marketplace/internal/config"
	"github.com/iliyamo/car-marketplace/internal/database"
	"github.com/iliyamo/car-marketplace/internal/logging"
	"github.com/iliyamo/car-marketplace/internal/repository"
	"github.com/iliyamo/car-marketplace/internal/service"
)

type bootstrapConfig struct {
	Username string `env:"BOOTSTRAP_ADMIN_USERNAME" envDefault:"admin"`
	Email    string `env:"BOOTSTRAP_ADMIN_EMAIL,required"`
	FullName string `env:"BOOTSTRAP_ADMIN_NAME" envDefault:"Super Admin"`
	Password string `env:"BOOTSTRAP_ADMIN_PASSWORD,required,unset"`
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.Env, cfg.LogLevel)

	var bc bootstrapConfig
	if err := env.Parse(&bc); err != nil {
		log.WithError(err).Fatal("bootstrap config")
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()

	svc := service.NewAdminService(service.AdminDeps{
		Admins:     repository.NewAdminRepo(db),
		Log:        log,
		BcryptCost: cfg.BcryptCost,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a, err := svc.Bootstrap(ctx, service.NewAdmin{
		Username: bc.Username, Email: bc.Email, FullName: bc.FullName, Password: bc.Password,
	})
	switch {
	case errors.Is(err, service.ErrAlreadyBootstrapped):
		log.Info("super admin already exists; nothing to do")
	case err != nil:
		log.WithError(err).Fatal("bootstrap failed")
	default:
		log.WithField("username", a.Username).Info("super admin created; password change required on first login")
	}
}
