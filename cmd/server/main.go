/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the billing engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (config.toml + BILLING_ env overrides)
  2. Build the zap logger
  3. Initialize SQLite store
  4. Wire ledger, allocator, auditor behind one set of tenant locks
  5. Configure HTTP router
  6. Start server with graceful shutdown

CONFIGURATION:
  See internal/config. Common overrides:
    BILLING_HTTP_PORT=3000
    BILLING_STORAGE_PATH=./data/billing.db   (":memory:" for in-memory)
    BILLING_LOG_FORMAT=json

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (shutdown timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/nyumba/billing-engine/api"
	"github.com/nyumba/billing-engine/billing"
	"github.com/nyumba/billing-engine/internal/config"
	"github.com/nyumba/billing-engine/internal/logger"
	"github.com/nyumba/billing-engine/store/sqlite"
	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	defer zlog.Sync()

	// Initialize store
	store, err := sqlite.New(cfg.Storage.Path)
	if err != nil {
		zlog.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// One lock table shared by every mutating service so cycle and payment
	// writes for a tenant serialize against each other.
	locks := billing.NewTenantLocks()
	notifier := billing.NewLogNotifier(zlog)
	validator := billing.NewReadingValidator(decimal.NewFromFloat(cfg.Billing.HighConsumptionThreshold))

	ledger := billing.NewCycleLedger(store, validator, notifier, locks)
	allocator := billing.NewPaymentAllocator(store, notifier, locks)
	auditor := billing.NewAuditor(store, locks)

	handler := api.NewHandler(ledger, allocator, auditor, store, zlog, api.Defaults{
		RatePerUnit:    decimal.NewFromFloat(cfg.Billing.DefaultRatePerUnit),
		StandingCharge: decimal.NewFromFloat(cfg.Billing.DefaultStandingCharge),
	})
	router := api.NewRouter(handler, cfg.HTTP.CORSOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		zlog.Info("server starting",
			zap.Int("port", cfg.HTTP.Port),
			zap.String("db", cfg.Storage.Path),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zlog.Fatal("server forced to shutdown", zap.Error(err))
	}
	zlog.Info("server stopped")
}
