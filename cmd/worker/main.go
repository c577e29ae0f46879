package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pymthouse/gateway/internal/config"
	"github.com/pymthouse/gateway/internal/database"
	"github.com/pymthouse/gateway/internal/events"
	"github.com/pymthouse/gateway/internal/logging"
	"github.com/pymthouse/gateway/internal/metrics"
	"github.com/pymthouse/gateway/internal/reporting"
)

// debounce is how long the worker waits after a payment event before
// reporting, so a burst of payments produces one report.
const debounce = 10 * time.Second

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

	// Initialize database
	db, err := database.New(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	repo := database.NewRepository(db)

	// Initialize event bus
	bus, err := events.New(cfg.Queue)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to queue")
	}
	defer bus.Close()

	reporter := reporting.NewReporter(repo, cfg.Reporting, logger)
	if !reporter.Enabled() {
		logger.Warn("No aggregator configured, usage reports will be skipped")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down worker gracefully...")
		cancel()
	}()

	// Payment events request a debounced report
	kick := make(chan struct{}, 1)
	handler := func(event *events.PaymentEvent) error {
		logger.WithFields(map[string]interface{}{
			"manifest_id": event.ManifestID,
			"fee_wei":     event.FeeWei,
		}).Debug("Payment event received")

		select {
		case kick <- struct{}{}:
		default:
		}
		return nil
	}

	logger.Info("Worker started, waiting for payment events...")
	if err := bus.ConsumePayments(ctx, handler); err != nil {
		logger.WithError(err).Fatal("Failed to consume payment events")
	}

	interval := cfg.Reporting.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var debounceTimer <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			logger.Info("Worker stopped")
			return
		case <-kick:
			if debounceTimer == nil {
				debounceTimer = time.After(debounce)
			}
		case <-debounceTimer:
			debounceTimer = nil
			report(ctx, reporter, bus, logger)
		case <-ticker.C:
			report(ctx, reporter, bus, logger)
		}
	}
}

func report(ctx context.Context, reporter *reporting.Reporter, bus *events.Bus, logger *logging.Logger) {
	if depth, err := bus.QueueDepth(); err == nil {
		metrics.EventQueueDepth.Set(float64(depth))
	}

	if err := reporter.Report(ctx); err != nil {
		logger.WithError(err).Error("Failed to send usage report")
	}
}
