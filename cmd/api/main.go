package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-pos-ws/internal/handler"
	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"
	"go-pos-ws/internal/service"
	"go-pos-ws/internal/ws"
	"go-pos-ws/pkg/config"
	"go-pos-ws/pkg/database"
	"go-pos-ws/pkg/jwt"
	"go-pos-ws/pkg/logger"
	"go-pos-ws/pkg/metrics"
	"go-pos-ws/pkg/redis"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: "pos-api"}).Error(ctx, "invalid configuration", err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{
		ServiceName: "pos-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	loc, _ := cfg.App.Location()

	// 2. Setup Database
	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Error(ctx, "database unavailable", err)
		os.Exit(1)
	}
	if err := repository.AutoMigrate(db); err != nil {
		log.Error(ctx, "migration failed", err)
		os.Exit(1)
	}

	// 3. Seed the settings row
	settingRepo := repository.NewSettingRepo(db)
	if _, err := settingRepo.EnsureDefault(ctx, model.StoreSetting{StoreName: cfg.App.Name}); err != nil {
		log.Warn(log.WithField(ctx, "error", err.Error()), "settings not seeded")
	}

	// 4. Setup WebSocket Hub, optionally fed through Redis
	wsHub := ws.NewHub(log)
	go wsHub.Run()

	runCtx, stopForwarding := context.WithCancel(ctx)
	defer stopForwarding()

	var publisher service.Publisher = wsHub
	var settingsCache service.SettingsCache
	var cacheKey string
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, log)
		if err != nil {
			log.Error(ctx, "redis unavailable", err)
			os.Exit(1)
		}
		publisher = redisClient
		settingsCache = redisClient
		cacheKey = redisClient.SettingsKey()
		go func() {
			err := redisClient.Forward(runCtx, func(topic string, payload []byte) {
				if err := wsHub.Publish(runCtx, topic, payload); err != nil {
					log.Debug(log.WithField(runCtx, "topic", topic), "feed message dropped")
				}
			})
			if err != nil {
				log.Error(runCtx, "redis feed stopped", err)
			}
		}()
	}

	// 5. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	cartMetrics := metrics.NewCartMetrics(registry)

	// 6. Dependency Injection (Wiring Layers)
	productRepo := repository.NewProductRepo(db)
	txRepo := repository.NewTransactionRepo(db)

	catalogService := service.NewCatalogService(productRepo, db, publisher, log)
	settingsService := service.NewSettingsService(settingRepo, settingsCache, cacheKey, cfg.Redis.SettingsCacheTTL, log)
	posService := service.NewService(service.Options{
		Catalog:          catalogService,
		Settings:         settingsService,
		Store:            txRepo,
		Publisher:        publisher,
		Metrics:          cartMetrics,
		Logger:           log,
		Location:         loc,
		InboxSize:        cfg.Session.InboxSize,
		OperationTimeout: cfg.Session.OperationTimeout,
	})
	signer := jwt.NewSigner(cfg.JWT.Secret, cfg.JWT.TTL)
	feedHandler := handler.NewFeedHandler(wsHub, posService, log)

	// 7. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: cfg.App.Name,
	})

	// Middleware
	app.Use(fiberlogger.New()) // Logging request
	app.Use(recover.New())     // Panic recovery
	app.Use(cors.New())        // CORS

	// 8. Routes
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	handler.Mount(app.Group("/api/v1"), signer, handler.Handlers{
		Sessions:     handler.NewSessionHandler(posService),
		Transactions: handler.NewTransactionHandler(posService),
		Products:     handler.NewProductHandler(catalogService),
		Settings:     handler.NewSettingsHandler(settingsService),
	})

	// WebSocket Route
	app.Use("/ws", feedHandler.Upgrade)
	app.Get("/ws", feedHandler.Serve())

	// 9. Graceful Shutdown
	go func() {
		if err := app.Listen(":" + cfg.App.Port); err != nil {
			log.Error(ctx, "server stopped", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info(ctx, "shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	err = multierr.Combine(
		app.ShutdownWithContext(shutdownCtx),
		posService.Shutdown(shutdownCtx),
	)
	stopForwarding()
	wsHub.Stop()
	if redisClient != nil {
		err = multierr.Append(err, redisClient.Close())
	}
	if sqlDB, dbErr := db.DB(); dbErr == nil {
		err = multierr.Append(err, sqlDB.Close())
	}
	if err != nil {
		log.Error(ctx, "unclean shutdown", err)
		os.Exit(1)
	}
	log.Info(ctx, "server exited")
}
