/*
handlers.go - HTTP API handlers for payroll runs

PURPOSE:
  Exposes payroll runs via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to the payroll engine and the run archive.

ENDPOINTS:
  Runs:
    POST   /api/runs                          Execute and archive a run
    GET    /api/runs                          List archived runs (?limit=)
    GET    /api/runs/{id}                     Run with rows and diagnostics
    GET    /api/runs/{id}/report              Pipe-delimited text report
    GET    /api/runs/{id}/workers/{worker}    One worker's ledger journal

  Configuration:
    GET    /api/routing                       Active category routing

  Health:
    GET    /api/health                        Dependency checks

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Run archive
  - Runner: Builds payroll runs against the configured source
  - Checks: Named health probes (database, redis)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid period or body
  - 404: Run not found
  - 502: The point-of-sale source failed during setup
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scheduler.go: Runs closed pay periods automatically
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Astoria-Consulting/mad-dogs/payroll"
	"github.com/Astoria-Consulting/mad-dogs/store/sqlite"
)

// =============================================================================
// RUNNER
// =============================================================================

// Runner builds payroll runs from fixed dependencies.
type Runner struct {
	Source   payroll.Source
	Catalog  payroll.CatalogResolver
	Routing  *payroll.RoutingTable
	Location *time.Location
	Workers  int

	// Claims returns the dedup claims for a run. Nil keeps the in-memory sets.
	Claims func(runID string) payroll.Claims

	Logger *zap.Logger
}

// NewRun prepares a run over period with a fresh id.
func (rn *Runner) NewRun(period payroll.Period) (*payroll.Run, error) {
	runID := uuid.NewString()
	opts := []payroll.RunOption{payroll.WithRunID(runID)}
	if rn.Logger != nil {
		opts = append(opts, payroll.WithLogger(rn.Logger))
	}
	if rn.Claims != nil {
		c := rn.Claims(runID)
		opts = append(opts, payroll.WithOrderClaims(c), payroll.WithPaymentClaims(c))
	}
	return payroll.NewRun(payroll.RunConfig{
		Period:  period,
		Routing: rn.Routing,
		Workers: rn.Workers,
	}, rn.Source, rn.Catalog, opts...)
}

func (rn *Runner) location() *time.Location {
	if rn.Location == nil {
		return time.UTC
	}
	return rn.Location
}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  *sqlite.Store
	Runner *Runner
	Checks map[string]HealthCheck
	Logger *zap.Logger

	// now is swapped in tests.
	now func() time.Time
}

// NewHandler creates a new handler.
func NewHandler(store *sqlite.Store, runner *Runner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		Store:  store,
		Runner: runner,
		Logger: logger,
		Checks: map[string]HealthCheck{},
		now:    time.Now,
	}
	if store != nil {
		h.Checks["database"] = store.Ping
	}
	return h
}

// ExecuteRun runs period and archives the outcome, successful or not.
func (h *Handler) ExecuteRun(ctx context.Context, period payroll.Period) (*sqlite.RunRecord, error) {
	run, err := h.Runner.NewRun(period)
	if err != nil {
		return nil, err
	}

	started := h.now()
	res, err := run.Execute(ctx)
	if err != nil {
		h.Logger.Error("payroll run failed",
			zap.String("run_id", run.ID()),
			zap.Stringer("period", period),
			zap.Error(err))
		// The request context may be the thing that failed.
		if saveErr := h.Store.SaveFailure(context.WithoutCancel(ctx), run.ID(), period, started, err); saveErr != nil {
			h.Logger.Error("failed to archive failed run", zap.String("run_id", run.ID()), zap.Error(saveErr))
		}
		return nil, err
	}

	if err := h.Store.SaveResult(ctx, res); err != nil {
		return nil, fmt.Errorf("archive run %s: %w", res.RunID, err)
	}
	h.Logger.Info("payroll run archived",
		zap.String("run_id", res.RunID),
		zap.Stringer("period", period),
		zap.Int("rows", len(res.Rows)),
		zap.Int("diagnostics", len(res.Diagnostics)))

	return h.Store.GetRun(ctx, res.RunID)
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// CreateRun executes a run for the requested period.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	period, err := h.requestedPeriod(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	rec, err := h.ExecuteRun(r.Context(), period)
	if err != nil {
		switch {
		case errors.Is(err, payroll.ErrFetchFailure):
			writeError(w, http.StatusBadGateway, "Point-of-sale fetch failed", err)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusServiceUnavailable, "Run canceled", err)
		default:
			writeError(w, http.StatusInternalServerError, "Run failed", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toRunDTO(rec))
}

func (h *Handler) requestedPeriod(req CreateRunRequest) (payroll.Period, error) {
	loc := h.Runner.location()
	if req.Start == "" && req.End == "" {
		return payroll.PreviousPayPeriod(h.now(), loc), nil
	}
	if req.Start == "" || req.End == "" {
		return payroll.Period{}, errors.New("start and end are both required")
	}
	return payroll.ParsePeriod(req.Start, req.End, loc)
}

// ListRuns returns archived run headers, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	runs, err := h.Store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i := range runs {
		dtos[i] = toRunDTO(&runs[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns one run with rows and diagnostics.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(rec))
}

// GetReport writes the run's rows as pipe-delimited text.
// ?header=false omits the column header.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	header := r.URL.Query().Get("header") != "false"
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	sink := payroll.NewWriterSink(w, header)
	for _, row := range rec.Rows {
		if err := sink.Emit(r.Context(), row); err != nil {
			h.Logger.Warn("report write aborted", zap.String("run_id", rec.ID), zap.Error(err))
			return
		}
	}
}

// GetJournal returns one worker's postings for a run.
func (h *Handler) GetJournal(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	worker := payroll.WorkerID(chi.URLParam(r, "worker"))

	if _, ok := h.loadRun(w, r); !ok {
		return
	}

	postings, err := h.Store.Journal(r.Context(), runID, worker)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load journal", err)
		return
	}

	dtos := make([]PostingDTO, len(postings))
	for i, p := range postings {
		dtos[i] = toPostingDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (*sqlite.RunRecord, bool) {
	rec, err := h.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, sqlite.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "Run not found", nil)
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load run", err)
		return nil, false
	}
	return rec, true
}

// =============================================================================
// CONFIGURATION AND HEALTH
// =============================================================================

// GetRouting returns the active routing table.
func (h *Handler) GetRouting(w http.ResponseWriter, r *http.Request) {
	rules := h.Runner.Routing.Rules()
	dtos := make([]RoutingRuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = toRoutingRuleDTO(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Health runs every check; any failure makes the response 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthDTO{Status: "ok", Checks: make(map[string]string, len(h.Checks))}
	status := http.StatusOK
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
