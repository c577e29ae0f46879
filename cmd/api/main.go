package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pymthouse/gateway/internal/auth"
	"github.com/pymthouse/gateway/internal/cache"
	"github.com/pymthouse/gateway/internal/config"
	"github.com/pymthouse/gateway/internal/database"
	"github.com/pymthouse/gateway/internal/events"
	"github.com/pymthouse/gateway/internal/ledger"
	"github.com/pymthouse/gateway/internal/logging"
	"github.com/pymthouse/gateway/internal/metrics"
	"github.com/pymthouse/gateway/internal/proxy"
	"github.com/pymthouse/gateway/internal/sessions"
	"github.com/pymthouse/gateway/internal/signer"
	"github.com/pymthouse/gateway/internal/tracing"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize tracing
	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.JaegerEndpoint)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize tracer, continuing without tracing")
		} else {
			defer closer.Close()
		}
	}

	// Initialize database
	db, err := database.New(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}

	repo := database.NewRepository(db)

	// Initialize cache; the gateway works without it, just slower
	var redisCache *cache.Cache
	redisCache, err = cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.AuthTTL)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, running without cache")
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	// Initialize payment event bus
	var bus *events.Bus
	bus, err = events.New(cfg.Queue)
	if err != nil {
		logger.WithError(err).Warn("RabbitMQ unavailable, payment events disabled")
		bus = nil
	} else {
		defer bus.Close()
	}

	// Core services
	var resultCache auth.ResultCache
	var statusCache signer.StatusCache
	if redisCache != nil {
		resultCache = redisCache
		statusCache = redisCache
	}

	authService := auth.NewService(repo, resultCache, cfg.Auth.TokenTTL, logger)
	creditLedger := ledger.NewLedger(repo, logger)
	aggregator := sessions.NewAggregator(repo, logger)

	signerClient := signer.NewClient(cfg.Signer)
	inspector := signer.NewDockerInspector(cfg.Signer.ComposeService, cfg.Signer.InspectTimeout)
	reconciler := signer.NewReconciler(repo, signerClient, inspector, statusCache, logger)

	var publisher proxy.EventPublisher
	if bus != nil {
		publisher = bus
	}
	var proxyStatusCache proxy.StatusCache
	if redisCache != nil {
		proxyStatusCache = redisCache
	}
	proxyService := proxy.NewService(repo, proxyStatusCache, signerClient, aggregator, publisher, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First-run admin credential
	if cfg.Auth.BootstrapAdmin {
		token, err := authService.Bootstrap(ctx)
		if err != nil {
			logger.WithError(err).Error("Failed to bootstrap admin token")
		} else if token != "" {
			// Printed exactly once; the hash is all that survives in storage.
			logger.WithField("token", token).Info("Bootstrap admin token issued")
		}
	}

	// Background signer status reconciliation
	go reconciler.Run(ctx, cfg.Signer.SyncInterval)

	// Metrics server
	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port)
		go func() {
			logger.WithField("port", cfg.Metrics.Port).Info("Starting metrics server")
			if err := metricsServer.Start(); err != nil {
				logger.WithError(err).Error("Metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer shutdownCancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	api := &API{
		repo:       repo,
		auth:       authService,
		ledger:     creditLedger,
		sessions:   aggregator,
		proxy:      proxyService,
		reconciler: reconciler,
		logger:     logger,
	}

	router := setupRouter(api, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("addr", addr).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}
