package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/profile-sync/internal/auth"
	"github.com/profile-sync/internal/bus"
	"github.com/profile-sync/internal/cache"
	"github.com/profile-sync/internal/config"
	"github.com/profile-sync/internal/fetcher"
	"github.com/profile-sync/internal/handler"
	"github.com/profile-sync/internal/kafka"
	"github.com/profile-sync/internal/leveling"
	"github.com/profile-sync/internal/loader"
	"github.com/profile-sync/internal/postgres"
	"github.com/profile-sync/internal/profile"
	"github.com/profile-sync/internal/redis"
	"github.com/profile-sync/internal/websocket"
	"github.com/profile-sync/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the aggregate-stats store
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	statsStore, err := redis.NewStatsStore(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer statsStore.Close()
	logger.Info("connected to Redis")

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := repo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize the persistent profile cache
	cacheStore, err := cache.NewStore(&cfg.Cache, logger)
	if err != nil {
		logger.Error("failed to open profile cache", "error", err)
		os.Exit(1)
	}
	defer cacheStore.Close()
	logger.Info("profile cache ready", "dir", cfg.Cache.Dir, "in_memory", cfg.Cache.InMemory)

	// Initialize the in-process signal bus
	signalBus := bus.New(logger)

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Assemble the load pipeline
	statsFetcher := fetcher.New(statsStore, repo, logger)
	profileLoader := loader.New(cacheStore, repo, statsFetcher, loader.Options{
		StaleAfter:     cfg.Cache.StaleAfter,
		ExpireAfter:    cfg.Cache.ExpireAfter,
		StatsAttempts:  cfg.Retry.StatsAttempts,
		BadgesAttempts: cfg.Retry.BadgesAttempts,
		BaseDelay:      cfg.Retry.BaseDelay,
	}, logger)

	levelingService := leveling.NewService(repo, statsStore, signalBus, logger)

	// Authentication boundary. The in-process implementation drives
	// sign-in/sign-out transitions until a real identity provider is attached.
	authenticator := auth.NewMemory()

	// Initialize the session manager (the public façade)
	manager := profile.NewManager(profile.Deps{
		Loader:          profileLoader,
		Writer:          repo,
		Awarder:         levelingService,
		Bus:             signalBus,
		Publisher:       wsHub,
		Notifier:        wsHub,
		AwardXP:         cfg.Profile.UpdateAwardXP,
		SyncReloadDelay: cfg.Profile.SyncReloadDelay,
		Logger:          logger,
	}, authenticator, logger)
	defer manager.Close()

	// Initialize the reconcile worker
	reconciler := worker.NewReconciler(repo, statsStore, cacheStore, &cfg.Sync, logger)

	// Seed the stats store on startup (recovery)
	logger.Info("seeding stats store from database")
	if seeded, err := reconciler.SeedStats(ctx); err != nil {
		logger.Warn("failed to seed stats store on startup", "error", err)
	} else {
		logger.Info("stats store seeded", "users", seeded)
	}

	// Start reconcile worker
	if cfg.Sync.Enabled {
		if err := reconciler.Start(ctx); err != nil {
			logger.Error("failed to start reconcile worker", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka consumer for external invalidation signals
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, signalBus, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler with WebSocket hub
	httpHandler := handler.NewHandler(manager, wsHub, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop reconcile worker
	if err := reconciler.Stop(); err != nil {
		logger.Error("failed to stop reconcile worker", "error", err)
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
