/*
scheduler.go - Automated pay period runs

PURPOSE:
  Periodically checks whether the most recently closed pay period has a
  completed run in the archive, and executes one if not. Pay periods are
  semi-monthly (1st-15th, 16th-end of month) in the reporting timezone.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Skips periods that already have a completed run
  - Failed runs are archived with status "failed" and retried next tick

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewPayPeriodScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ExecuteRun (shared with POST /api/runs)
  - payroll/period.go: PreviousPayPeriod
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Astoria-Consulting/mad-dogs/payroll"
)

// PayPeriodScheduler runs closed pay periods automatically.
type PayPeriodScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPayPeriodScheduler creates a new scheduler.
func NewPayPeriodScheduler(handler *Handler) *PayPeriodScheduler {
	return &PayPeriodScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
	}
}

// Start begins the scheduler.
func (ps *PayPeriodScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	logger := ps.Handler.Logger
	if !ps.Enabled {
		logger.Info("pay period scheduler disabled")
		return
	}
	if ps.ticker != nil {
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.stop = make(chan struct{})
	ps.wg.Add(1)

	go ps.run(ps.ticker, ps.stop)

	logger.Info("pay period scheduler started", zap.Duration("interval", ps.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight check to finish.
func (ps *PayPeriodScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker != nil {
		ps.ticker.Stop()
		close(ps.stop)
		ps.wg.Wait()
		ps.ticker = nil
		ps.Handler.Logger.Info("pay period scheduler stopped")
	}
}

func (ps *PayPeriodScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer ps.wg.Done()

	ctx := context.Background()

	// Run immediately on start
	ps.CheckAndProcess(ctx)

	for {
		select {
		case <-ticker.C:
			ps.CheckAndProcess(ctx)
		case <-stop:
			return
		}
	}
}

// CheckAndProcess runs the previous pay period if it has no completed run.
// It reports whether a run was executed.
func (ps *PayPeriodScheduler) CheckAndProcess(ctx context.Context) bool {
	h := ps.Handler
	period := payroll.PreviousPayPeriod(h.now(), h.Runner.location())

	done, err := h.Store.HasCompletedRun(ctx, period)
	if err != nil {
		h.Logger.Error("scheduler: archive lookup failed", zap.Stringer("period", period), zap.Error(err))
		return false
	}
	if done {
		h.Logger.Debug("scheduler: period already run", zap.Stringer("period", period))
		return false
	}

	h.Logger.Info("scheduler: running closed pay period", zap.Stringer("period", period))
	if _, err := h.ExecuteRun(ctx, period); err != nil {
		h.Logger.Warn("scheduler: run failed, will retry", zap.Stringer("period", period), zap.Error(err))
	}
	return true
}
