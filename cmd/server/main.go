/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Mad Dogs payroll server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment)
  2. Build the zap logger
  3. Load the point-of-sale export and the category routing
  4. Open the SQLite run archive
  5. Optionally connect Redis for shared dedup claims
  6. Start the pay period scheduler and the HTTP server

ENVIRONMENT:
  See config/config.go. The ones most often set:
    PAYROLL_DATA_FILE     Point-of-sale export (required)
    PAYROLL_ROUTING_FILE  Routing table (JSON or YAML); house rules if unset
    SQLITE_PATH           Run archive (":memory:" for a throwaway one)
    DEDUP_BACKEND         "memory" (default) or "redis"

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (waits for an in-flight run)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close Redis and the database

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Pay period scheduler
  - cmd/payroll/main.go: One-shot CLI
*/
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Astoria-Consulting/mad-dogs/api"
	"github.com/Astoria-Consulting/mad-dogs/config"
	"github.com/Astoria-Consulting/mad-dogs/factory"
	"github.com/Astoria-Consulting/mad-dogs/feed"
	"github.com/Astoria-Consulting/mad-dogs/observability"
	"github.com/Astoria-Consulting/mad-dogs/payroll"
	"github.com/Astoria-Consulting/mad-dogs/store/redis"
	"github.com/Astoria-Consulting/mad-dogs/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	loc, err := cfg.Payroll.Location()
	if err != nil {
		logger.Fatal("invalid timezone", zap.Error(err))
	}

	if cfg.Payroll.DataFile == "" {
		logger.Fatal("PAYROLL_DATA_FILE is not set")
	}
	snapshot, err := feed.Load(cfg.Payroll.DataFile)
	if err != nil {
		logger.Fatal("failed to load point-of-sale export", zap.String("path", cfg.Payroll.DataFile), zap.Error(err))
	}

	routing, err := factory.NewRoutingFactory().
		WithDefaults(cfg.Payroll.Percentages).
		Load(cfg.Payroll.RoutingFile)
	if err != nil {
		logger.Fatal("failed to load routing", zap.String("path", cfg.Payroll.RoutingFile), zap.Error(err))
	}

	store, err := sqlite.New(cfg.SQLite.Path)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	runner := &api.Runner{
		Source:   snapshot,
		Catalog:  snapshot,
		Routing:  routing,
		Location: loc,
		Workers:  cfg.Payroll.Workers,
		Logger:   logger,
	}

	var redisClient *redis.Client
	if cfg.Payroll.DedupBackend == config.DedupRedis {
		redisClient = redis.NewClient(cfg.Redis, logger)
		defer redisClient.Close()
		runner.Claims = func(runID string) payroll.Claims {
			return redis.NewClaims(redisClient.Client, runID, cfg.Redis.ClaimTTL)
		}
	}

	handler := api.NewHandler(store, runner, logger)
	if redisClient != nil {
		handler.Checks["redis"] = redisClient.Ping
	}

	scheduler := api.NewPayPeriodScheduler(handler)
	scheduler.Start()

	server := &http.Server{
		Addr:         cfg.App.Addr(),
		Handler:      api.NewRouter(handler, cfg.App.RequestTimeout()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.App.RequestTimeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("timezone", loc.String()),
			zap.String("dedup", cfg.Payroll.DedupBackend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
