/*
main.go - One-shot payroll run

PURPOSE:
  Runs payroll for one period against a point-of-sale export and prints the
  pipe-delimited report to stdout. Diagnostics go to the structured log on
  stderr, so stdout stays clean for piping into the payroll sheet.

COMMAND-LINE FLAGS:
  -start    First day of the period, YYYY-MM-DD (default: previous pay period)
  -end      Last day of the period, inclusive
  -data     Point-of-sale export (default: $PAYROLL_DATA_FILE)
  -routing  Routing file, JSON or YAML (default: $PAYROLL_ROUTING_FILE)
  -archive  SQLite path to archive the run in (default: none)
  -workers  Concurrent payment processors (default: $PAYROLL_WORKERS)
  -tz       Reporting timezone (default: $PAYROLL_TIMEZONE)
  -header   Print the column header (default: true)

EXAMPLES:
  # August 2021, second half
  ./payroll -data=export.json -start=2021-08-16 -end=2021-08-31

  # Archive alongside the server's runs
  ./payroll -data=export.json -archive=payroll.db

EXIT CODES:
  0  Report written (diagnostics may still have been logged)
  1  Configuration error or the run could not start

SEE ALSO:
  - cmd/server/main.go: HTTP server and scheduler
  - payroll/run.go: Run orchestration
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

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
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	start := flag.String("start", "", "first day of the period (YYYY-MM-DD)")
	end := flag.String("end", "", "last day of the period, inclusive (YYYY-MM-DD)")
	data := flag.String("data", cfg.Payroll.DataFile, "point-of-sale export")
	routingFile := flag.String("routing", cfg.Payroll.RoutingFile, "routing file (JSON or YAML)")
	archive := flag.String("archive", "", "SQLite path to archive the run in")
	workers := flag.Int("workers", cfg.Payroll.Workers, "concurrent payment processors")
	tz := flag.String("tz", cfg.Payroll.Timezone, "reporting timezone")
	header := flag.Bool("header", true, "print the column header")
	flag.Parse()

	cfg.Payroll.DataFile = *data
	cfg.Payroll.RoutingFile = *routingFile
	cfg.Payroll.Workers = *workers
	cfg.Payroll.Timezone = *tz

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *start, *end, *archive, *header, logger); err != nil {
		logger.Error("payroll run failed", zap.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, start, end, archive string, header bool, logger *zap.Logger) error {
	loc, err := cfg.Payroll.Location()
	if err != nil {
		return err
	}

	period, err := resolvePeriod(start, end, loc, time.Now())
	if err != nil {
		return err
	}

	if cfg.Payroll.DataFile == "" {
		return fmt.Errorf("no export given: set -data or PAYROLL_DATA_FILE")
	}
	snapshot, err := feed.Load(cfg.Payroll.DataFile)
	if err != nil {
		return err
	}

	routing, err := factory.NewRoutingFactory().
		WithDefaults(cfg.Payroll.Percentages).
		Load(cfg.Payroll.RoutingFile)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	opts := []payroll.RunOption{payroll.WithRunID(runID), payroll.WithLogger(logger)}
	var claims *redis.Claims
	if cfg.Payroll.DedupBackend == config.DedupRedis {
		client := redis.NewClient(cfg.Redis, logger)
		defer client.Close()
		claims = redis.NewClaims(client.Client, runID, cfg.Redis.ClaimTTL)
		opts = append(opts, payroll.WithOrderClaims(claims), payroll.WithPaymentClaims(claims))
	}

	r, err := payroll.NewRun(payroll.RunConfig{
		Period:  period,
		Routing: routing,
		Workers: cfg.Payroll.Workers,
	}, snapshot, snapshot, opts...)
	if err != nil {
		return err
	}

	startedAt := time.Now()
	res, runErr := r.Execute(ctx)

	var store *sqlite.Store
	if archive != "" {
		if store, err = sqlite.New(archive); err != nil {
			return err
		}
		defer store.Close()
	}

	if runErr != nil {
		if store != nil {
			if err := store.SaveFailure(context.WithoutCancel(ctx), runID, period, startedAt, runErr); err != nil {
				logger.Error("failed to archive failed run", zap.String("run_id", runID), zap.Error(err))
			}
		}
		return runErr
	}

	for _, d := range res.Diagnostics {
		logger.Warn("payroll diagnostic",
			zap.String("kind", string(d.Kind)),
			zap.String("payment_id", string(d.PaymentID)),
			zap.String("order_id", string(d.OrderID)),
			zap.String("worker_id", string(d.WorkerID)),
			zap.String("message", d.Message))
	}

	if err := res.Emit(ctx, payroll.NewWriterSink(os.Stdout, header)); err != nil {
		return err
	}

	if store != nil {
		if err := store.SaveResult(ctx, res); err != nil {
			return fmt.Errorf("archive run: %w", err)
		}
	}

	// The run is final; its claims only guard a rerun under the same id.
	if claims != nil {
		releaseClaims(ctx, claims, runID, logger)
	}

	logger.Info("payroll run complete",
		zap.String("run_id", runID),
		zap.Stringer("period", period),
		zap.Int("rows", len(res.Rows)),
		zap.Int("diagnostics", len(res.Diagnostics)),
		zap.Int("payments", res.Stats.Payments),
		zap.Stringer("direct_tips", res.Stats.DirectTips),
		zap.Stringer("tipouts", res.Stats.Tipouts))
	return nil
}

// releaser drops a finished run's dedup claims.
type releaser interface {
	Release(ctx context.Context) (int64, error)
}

// releaseClaims clears the run's keys. A failure only leaves them to the TTL.
func releaseClaims(ctx context.Context, claims releaser, runID string, logger *zap.Logger) bool {
	n, err := claims.Release(ctx)
	if err != nil {
		logger.Warn("failed to release dedup claims, leaving them to expire",
			zap.String("run_id", runID), zap.Error(err))
		return false
	}
	logger.Debug("released dedup claims", zap.String("run_id", runID), zap.Int64("keys", n))
	return true
}

// resolvePeriod parses the flags, defaulting to the last closed pay period
// when both are empty.
func resolvePeriod(start, end string, loc *time.Location, now time.Time) (payroll.Period, error) {
	switch {
	case start == "" && end == "":
		return payroll.PreviousPayPeriod(now, loc), nil
	case end == "":
		end = start
	}
	return payroll.ParsePeriod(start, end, loc)
}
