package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/iliyamo/car-marketplace/internal/config"
	"github.com/iliyamo/car-marketplace/internal/model"
)

// OpenChatStore opens the store that holds chat messages and migrates its
// schema. Chat traffic is kept apart from the listings database so the
// relay can be scaled or pruned on its own.
func OpenChatStore(cfg config.ChatStoreConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = "data/messages.db"
		}
		// sqlite creates the file but not its directory
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create chat store dir %q: %w", dir, err)
			}
		}
		dialector = sqlite.Open(path)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported chat store driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(
			log.New(log.Writer(), "\r\n", log.LstdFlags),
			logger.Config{
				SlowThreshold:             2 * time.Second,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("open chat store: %w", err)
	}
	if err := db.AutoMigrate(&model.Message{}); err != nil {
		return nil, fmt.Errorf("migrate chat store: %w", err)
	}
	return db, nil
}
