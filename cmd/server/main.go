package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/car-marketplace/internal/config"
	"github.com/iliyamo/car-marketplace/internal/database"
	"github.com/iliyamo/car-marketplace/internal/handler"
	"github.com/iliyamo/car-marketplace/internal/logging"
	"github.com/iliyamo/car-marketplace/internal/queue"
	"github.com/iliyamo/car-marketplace/internal/realtime"
	"github.com/iliyamo/car-marketplace/internal/repository"
	"github.com/iliyamo/car-marketplace/internal/router"
	"github.com/iliyamo/car-marketplace/internal/service"
	"github.com/iliyamo/car-marketplace/internal/storage"
)

func main() {
	_ = godotenv.Load() // a missing .env is fine

	cfg := config.Load()
	log := logging.New(cfg.Env, cfg.LogLevel)

	storageCfg, err := config.LoadStorageConfig()
	if err != nil {
		log.WithError(err).Fatal("storage config")
	}
	chatCfg, err := config.LoadChatStoreConfig()
	if err != nil {
		log.WithError(err).Fatal("chat store config")
	}
	brokerCfg, err := config.LoadBrokerConfig()
	if err != nil {
		log.WithError(err).Fatal("broker config")
	}
	presenceCfg, err := config.LoadPresenceConfig()
	if err != nil {
		log.WithError(err).Fatal("presence config")
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()
	dbx := sqlx.NewDb(db, "mysql")

	chatDB, err := database.OpenChatStore(chatCfg)
	if err != nil {
		log.WithError(err).Fatal("chat store failed")
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable; cache, rate limits and redis presence disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, storageCfg)
	if err != nil {
		log.WithError(err).Fatal("storage init failed")
	}

	origin := uuid.NewString()
	publisher := queue.NewPublisher(brokerCfg.URL, brokerCfg.ModerationQueue, brokerCfg.ChatExchange, log)

	// repositories
	cars := repository.NewCarRepo(db)
	users := repository.NewUserRepo(db)
	blocks := repository.NewBlockRepo(db)
	searches := repository.NewSavedSearchRepo(db)
	favorites := repository.NewFavoriteRepo(db, cars)
	otps := repository.NewOTPRepo(db)
	admins := repository.NewAdminRepo(db)
	sessions := repository.NewSessionRepo(db)
	contacts := repository.NewContactRepo(db)
	lookups := repository.NewLookupRepo(dbx)
	reports := repository.NewReportRepo(dbx)
	activity := repository.NewActivityRepo(dbx)
	payments := repository.NewPaymentRepo(dbx)
	subs := repository.NewSubscriptionRepo(dbx)
	messages := repository.NewMessageRepo(chatDB)

	// services
	notifier := service.LogNotifier{Log: log, RevealCode: cfg.Env != "prod" && cfg.Env != "production"}
	authSvc := service.NewAuthService(users, otps, notifier, service.AuthConfig{
		JWTSecret:    cfg.JWTSecret,
		AccessTTLMin: cfg.AccessTTLMin,
		BcryptCost:   cfg.BcryptCost,
		OTPTTL:       time.Duration(cfg.OTPTTLMin) * time.Minute,
	}, log)
	carSvc := service.NewCarService(cars, users, blocks, searches, log)
	importSvc := service.NewImportService(db, carSvc, log)
	userSvc := service.NewUserService(service.UserDeps{
		Users: users, Cars: cars, Favorites: favorites, Searches: searches,
		Blocks: blocks, Reports: reports, Contacts: contacts, Auth: authSvc,
	})
	adminSvc := service.NewAdminService(service.AdminDeps{
		Admins: admins, Sessions: sessions, Activity: activity, Cars: cars, Users: users,
		Reports: reports, OTPs: otps, Publisher: publisher, Notifier: notifier, Log: log,
		SessionTTL: time.Duration(cfg.AdminSessionTTL) * time.Hour, BcryptCost: cfg.BcryptCost,
	})
	searchSvc := service.NewSearchService(cars, lookups)
	paymentSvc := service.NewPaymentService(payments, subs, cfg.PublicBaseURL, log)
	subSvc := service.NewSubscriptionService(subs, cars, paymentSvc)
	messageSvc := service.NewMessageService(messages, users, blocks)

	// realtime chat
	var presence realtime.Presence = realtime.NewMemoryPresence()
	ttl := time.Duration(presenceCfg.TTLSec) * time.Second
	var heartbeat time.Duration
	if presenceCfg.Backend == "redis" {
		if rdb == nil {
			log.Fatal("PRESENCE_BACKEND=redis requires a reachable redis")
		}
		presence = realtime.NewRedisPresence(rdb, presenceCfg.Prefix, ttl)
		heartbeat = ttl / 3
	}
	chat := &realtime.Server{
		Messages:  messageSvc,
		Presence:  presence,
		Hub:       realtime.NewHub(log),
		Broker:    publisher,
		Origin:    origin,
		JWTSecret: cfg.JWTSecret,
		Heartbeat: heartbeat,
		Log:       log,
	}

	janitor := &service.Janitor{
		Interval: time.Duration(cfg.PurgeInterval) * time.Minute,
		Targets:  map[string]service.Purger{"admin_sessions": sessions, "otp_requests": otps},
		Log:      log,
	}
	go runWorker(ctx, log, "janitor", janitor.Run)

	if publisher.Enabled() {
		consumer := &queue.ModerationConsumer{
			URL: brokerCfg.URL, Queue: brokerCfg.ModerationQueue, LogPath: brokerCfg.ModerationLogPath, Log: log,
		}
		fanout := &queue.ChatFanout{
			URL: brokerCfg.URL, Exchange: brokerCfg.ChatExchange, Origin: origin, Deliver: chat.DeliverRemote, Log: log,
		}
		go runWorker(ctx, log, "moderation consumer", consumer.Run)
		go runWorker(ctx, log, "chat fanout", fanout.Run)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	e := router.New(router.Handlers{
		Auth:     handler.NewAuthHandler(authSvc, log),
		Cars:     handler.NewCarHandler(carSvc, importSvc, userSvc, store, log),
		Lookups:  handler.NewLookupHandler(lookups, log),
		Search:   handler.NewSearchHandler(searchSvc, log),
		Users:    handler.NewUserHandler(userSvc, log),
		Admin:    handler.NewAdminHandler(adminSvc, userSvc, lookups, log),
		Billing:  handler.NewBillingHandler(paymentSvc, subSvc, log),
		Messages: handler.NewMessageHandler(messageSvc, chat, log),
		Uploads:  handler.NewUploadHandler(store, log),
		Health:   &handler.HealthHandler{DB: db, Redis: rdb},
		Chat:     chat,
	}, router.Deps{
		JWTSecret: cfg.JWTSecret,
		Sessions:  adminSvc,
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		OTPLimit:  config.LoadOTPRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		Registry:  reg,
		Log:       log,
	})

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "instance": origin}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

// runWorker runs a background consumer until ctx ends.
func runWorker(ctx context.Context, log *logrus.Logger, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).WithField("worker", name).Error("worker stopped")
	}
}
