/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the settlement bridge server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (flags with environment fallbacks)
  2. Configure structured logging
  3. Open both ledger clients
  4. Seed demo data when a ledger is in-memory
  5. Create service, handler and router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -addr             Listen address (SERVER_ADDR, default :8080)
  -customer-db      Customer ledger DSN (CUSTOMER_LEDGER_DSN)
  -obligations-db   Obligations ledger DSN (OBLIGATIONS_LEDGER_DSN)
  -pool-size        Connections per ledger (LEDGER_POOL_SIZE)
  -query-timeout    Per-statement timeout (LEDGER_QUERY_TIMEOUT)
  -static           Static file directory (STATIC_DIR)
  -env              development | production (ENVIRONMENT)
  -allowed-origins  CORS origins (CORS_ALLOWED_ORIGINS)

  API_USER / API_PASSWORD are environment only.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close both ledger clients
  4. Exit

EXAMPLES:
  # Local SQLite ledgers
  ./server -customer-db=./data/customer.db -obligations-db=./data/obligations.db

  # In-memory ledgers with demo data
  ./server -customer-db=":memory:" -obligations-db=":memory:"

  # Remote ledgers
  CUSTOMER_LEDGER_DSN=postgres://... OBLIGATIONS_LEDGER_DSN=postgres://... \
  API_USER=... API_PASSWORD=... ./server -env=production

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Settings
  - store/open.go: Backend selection
*/
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/settlement-bridge/api"
	"github.com/warp/settlement-bridge/config"
	"github.com/warp/settlement-bridge/seed"
	"github.com/warp/settlement-bridge/settlement"
	"github.com/warp/settlement-bridge/store"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx := context.Background()
	customer, obligations, err := store.Open(ctx, cfg)
	if err != nil {
		logger.Error("failed to open ledgers", "error", err)
		os.Exit(1)
	}
	defer customer.Close()
	defer obligations.Close()

	if config.Backend(cfg.CustomerDSN) == config.BackendMemory || config.Backend(cfg.ObligationsDSN) == config.BackendMemory {
		if err := seed.Load(ctx, "demo", customer, obligations); err != nil {
			logger.Error("failed to seed in-memory ledgers", "error", err)
			os.Exit(1)
		}
		logger.Info("in-memory ledgers seeded", "scenario", "demo")
	}

	svc := settlement.NewService(customer, obligations,
		settlement.WithLogger(logger),
		settlement.WithObserver(api.WorkflowMetrics{}),
	)
	handler := api.NewHandler(svc, logger, customer, obligations)
	router := api.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			"addr", cfg.Addr,
			"env", cfg.Environment,
			"customer_backend", config.Backend(cfg.CustomerDSN),
			"obligations_backend", config.Backend(cfg.ObligationsDSN),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
