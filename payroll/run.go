/*
run.go - Orchestrates one payroll run

STARTUP SEQUENCE (sequential, fatal on failure):
  1. Fetch team members, shifts and categories
  2. Build the shift index and hours summary
  3. Seed a ledger entry for every worker with a shift
  4. Fetch the period's payments

CONCURRENT PHASE:
  Payments are fanned out to a bounded pool of goroutines. Each worker runs
  Processor.Process; a failing payment becomes a diagnostic and the pool
  moves on. Completion order is not meaningful.

REPORT:
  After the pool drains, every ledger entry is joined with its worker name
  and per-role hours into a ReportRow. Rows are sorted by name.

SEE ALSO:
  - processor.go: per payment work
  - report.go: row rendering and sinks
*/
package payroll

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultWorkers is the pool size when RunConfig.Workers is unset.
const DefaultWorkers = 8

// RunConfig is the immutable configuration of a run.
type RunConfig struct {
	Period  Period
	Routing *RoutingTable
	Workers int
}

// Validate checks the configuration is usable.
func (c RunConfig) Validate() error {
	if c.Routing == nil {
		return errors.New("run config: routing table is required")
	}
	if c.Period.End.Before(c.Period.Start) {
		return fmt.Errorf("run config: %w", ErrInvalidPeriod)
	}
	return nil
}

// =============================================================================
// DIAGNOSTICS
// =============================================================================

type DiagnosticKind string

const (
	DiagUnknownCategory   DiagnosticKind = "unknown_category"
	DiagCatalogResolution DiagnosticKind = "catalog_resolution"
	DiagDataError         DiagnosticKind = "data_error"
	DiagDuplicateOrder    DiagnosticKind = "duplicate_order"
	DiagDuplicatePayment  DiagnosticKind = "duplicate_payment"
	DiagMissingOrder      DiagnosticKind = "missing_order"
	DiagFetchFailure      DiagnosticKind = "fetch_failure"
	DiagPaymentFailed     DiagnosticKind = "payment_failed"
)

// Diagnostic is a non-fatal problem recorded during a run.
type Diagnostic struct {
	Kind      DiagnosticKind
	PaymentID PaymentID
	OrderID   OrderID
	WorkerID  WorkerID
	Message   string
	Err       error
}

func classify(err error) DiagnosticKind {
	switch {
	case errors.Is(err, ErrUnknownCategory):
		return DiagUnknownCategory
	case errors.Is(err, ErrCatalogResolution):
		return DiagCatalogResolution
	case errors.Is(err, ErrDataError):
		return DiagDataError
	case errors.Is(err, ErrFetchFailure):
		return DiagFetchFailure
	default:
		return DiagPaymentFailed
	}
}

func newDiagnostic(err error, pay PaymentID, order OrderID) Diagnostic {
	d := Diagnostic{Kind: classify(err), PaymentID: pay, OrderID: order, Message: err.Error(), Err: err}
	var de *DataError
	if errors.As(err, &de) {
		d.WorkerID = de.WorkerID
	}
	return d
}

// =============================================================================
// RESULT
// =============================================================================

// Stats counts what happened to the period's payments.
type Stats struct {
	Payments          int
	Processed         int
	Failed            int
	DuplicatePayments int
	DuplicateOrders   int
	MissingOrders     int
	Allocations       int
	SkippedItems      int
	DirectTips        Cents
	Tipouts           Cents
}

// Result is the finished, read-only output of a run.
type Result struct {
	RunID       string
	Period      Period
	StartedAt   time.Time
	FinishedAt  time.Time
	Rows        []ReportRow
	Diagnostics []Diagnostic
	Stats       Stats
	Ledger      *TipLedger
}

// Emit sends every row to sink in report order.
func (r *Result) Emit(ctx context.Context, sink Sink) error {
	for _, row := range r.Rows {
		if err := sink.Emit(ctx, row); err != nil {
			return fmt.Errorf("emit row for %s: %w", row.WorkerID, err)
		}
	}
	return nil
}

// =============================================================================
// RUN
// =============================================================================

// Run computes the tip ledger and hours summary for one period.
type Run struct {
	cfg      RunConfig
	source   Source
	catalog  CatalogResolver
	orders   Claims
	payments Claims
	logger   *zap.Logger
	id       string
}

// RunOption customises a Run.
type RunOption func(*Run)

// WithLogger sets the run's logger.
func WithLogger(l *zap.Logger) RunOption { return func(r *Run) { r.logger = l } }

// WithOrderClaims replaces the in-memory processed-orders set, e.g. with a
// shared store when several processes split one run.
func WithOrderClaims(c Claims) RunOption { return func(r *Run) { r.orders = c } }

// WithPaymentClaims replaces the in-memory processed-payments set.
func WithPaymentClaims(c Claims) RunOption { return func(r *Run) { r.payments = c } }

// WithRunID fixes the run id instead of generating one.
func WithRunID(id string) RunOption { return func(r *Run) { r.id = id } }

// NewRun prepares a run. Nothing is fetched until Execute.
func NewRun(cfg RunConfig, source Source, catalog CatalogResolver, opts ...RunOption) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, errors.New("run: source is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Period.Location == nil {
		cfg.Period.Location = time.UTC
	}
	r := &Run{cfg: cfg, source: source, catalog: catalog}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.orders == nil {
		r.orders = NewProcessedSet()
	}
	if r.payments == nil {
		r.payments = NewProcessedSet()
	}
	if r.id == "" {
		r.id = uuid.NewString()
	}
	return r, nil
}

// ID returns the run id.
func (r *Run) ID() string { return r.id }

// Execute performs the run. Only setup feed failures and cancellation return
// an error; everything else is reported in Result.Diagnostics.
func (r *Run) Execute(ctx context.Context) (*Result, error) {
	log := r.logger.With(zap.String("run_id", r.id), zap.String("period", r.cfg.Period.String()))
	res := &Result{RunID: r.id, Period: r.cfg.Period, StartedAt: time.Now()}
	from, to := r.cfg.Period.Bounds()

	team, err := r.source.TeamMembers(ctx)
	if err != nil {
		return nil, &FetchError{Resource: "team members", Err: err}
	}
	shifts, err := r.source.Shifts(ctx, from, to)
	if err != nil {
		return nil, &FetchError{Resource: "shifts", Err: err}
	}
	categories, err := r.source.Categories(ctx)
	if err != nil {
		return nil, &FetchError{Resource: "categories", Err: err}
	}

	index := NewShiftIndex(shifts, log)
	hours, dataErrs := AccumulateHours(shifts, log)
	for _, err := range dataErrs {
		log.Warn("shift data ignored", zap.Error(err))
		res.Diagnostics = append(res.Diagnostics, newDiagnostic(err, "", ""))
	}

	ledger := NewTipLedger()
	for _, id := range index.Workers() {
		ledger.Touch(id)
	}
	res.Ledger = ledger

	payments, err := r.source.Payments(ctx, from, to)
	if err != nil {
		return nil, &FetchError{Resource: "payments", Err: err}
	}
	res.Stats.Payments = len(payments)
	log.Info("processing payroll",
		zap.Int("team_members", len(team)),
		zap.Int("shifts", len(shifts)),
		zap.Int("payments", len(payments)),
		zap.Int("workers", r.cfg.Workers))

	processor := NewProcessor(ProcessorDeps{
		Source:    r.source,
		Allocator: NewAllocator(r.cfg.Routing, index, ledger, r.catalog, categories, log),
		Ledger:    ledger,
		Shifts:    index,
		Orders:    r.orders,
		Payments:  r.payments,
		Location:  r.cfg.Period.Location,
		Logger:    log,
	})

	r.dispatch(ctx, processor, payments, res, log)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Rows, res.Diagnostics = buildRows(ledger, hours, team, res.Diagnostics)
	res.FinishedAt = time.Now()
	log.Info("payroll complete",
		zap.Int("rows", len(res.Rows)),
		zap.Int("diagnostics", len(res.Diagnostics)),
		zap.Int("failed_payments", res.Stats.Failed),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)))
	return res, nil
}

// dispatch fans payments out to cfg.Workers goroutines and folds every
// outcome into res under one mutex.
func (r *Run) dispatch(ctx context.Context, processor *Processor, payments []Payment, res *Result, log *zap.Logger) {
	jobs := make(chan Payment)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pay := range jobs {
				out, err := processor.Process(ctx, pay)
				if err != nil {
					log.Warn("payment abandoned", zap.String("payment_id", string(pay.ID)), zap.Error(err))
				}
				mu.Lock()
				res.record(out, err)
				mu.Unlock()
			}
		}()
	}

feed:
	for _, pay := range payments {
		select {
		case jobs <- pay:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
}

func (res *Result) record(out Outcome, err error) {
	res.Stats.DirectTips += out.DirectTip
	for _, skipped := range out.Skipped {
		if IsSkippable(skipped) {
			res.Stats.SkippedItems++
		}
		res.Diagnostics = append(res.Diagnostics, newDiagnostic(skipped, out.PaymentID, out.OrderID))
	}
	for _, a := range out.Allocations {
		res.Stats.Allocations++
		res.Stats.Tipouts += a.Total
	}

	switch {
	case err != nil:
		res.Stats.Failed++
		res.Diagnostics = append(res.Diagnostics, newDiagnostic(err, out.PaymentID, out.OrderID))
	case out.DuplicatePayment:
		res.Stats.DuplicatePayments++
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Kind: DiagDuplicatePayment, PaymentID: out.PaymentID, OrderID: out.OrderID,
			Message: ErrDuplicatePayment.Error(), Err: ErrDuplicatePayment,
		})
	case out.DuplicateOrder:
		res.Stats.DuplicateOrders++
		res.Stats.Processed++
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Kind: DiagDuplicateOrder, PaymentID: out.PaymentID, OrderID: out.OrderID,
			Message: ErrDuplicateOrder.Error(), Err: ErrDuplicateOrder,
		})
	case out.OrderMissing:
		res.Stats.MissingOrders++
		res.Stats.Processed++
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Kind: DiagMissingOrder, PaymentID: out.PaymentID, OrderID: out.OrderID,
			Message: "no order body for payment",
		})
	default:
		res.Stats.Processed++
	}
}

// buildRows joins ledger balances with names and hours. Workers with no
// team-member record keep their id as the name and get a DataError.
func buildRows(ledger *TipLedger, hours *Hours, team []Worker, diags []Diagnostic) ([]ReportRow, []Diagnostic) {
	names := make(map[WorkerID]string, len(team))
	for _, w := range team {
		names[w.ID] = w.Name
	}

	balances := ledger.Balances()
	rows := make([]ReportRow, 0, len(balances))
	for _, b := range balances {
		name, ok := names[b.WorkerID]
		if !ok {
			name = string(b.WorkerID)
			err := &DataError{WorkerID: b.WorkerID, Field: "worker", Value: string(b.WorkerID), Err: ErrUnknownWorker}
			diags = append(diags, newDiagnostic(err, "", ""))
		}
		rows = append(rows, ReportRow{
			WorkerID:   b.WorkerID,
			WorkerName: name,
			NetTips:    b.Balance,
			Hours:      hours.For(b.WorkerID),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].WorkerName != rows[j].WorkerName {
			return rows[i].WorkerName < rows[j].WorkerName
		}
		return rows[i].WorkerID < rows[j].WorkerID
	})
	return rows, diags
}
