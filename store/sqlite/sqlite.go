/*
Package sqlite provides a SQLite-backed archive of payroll runs.

PURPOSE:
  A payroll run is computed in memory and thrown away. The archive keeps
  what payroll needs afterwards: the report rows that were paid out, the
  diagnostics an operator has to chase, and the full ledger journal so any
  worker's net tips can be explained posting by posting.

APPEND-ONLY ENFORCEMENT:
  Runs are never updated once saved:
  - No UPDATE statements on runs, report_rows, diagnostics or postings
  - A rerun of the same period is a new run with a new id
  - Reset exists for tests and local development only

KEY TABLES:
  runs:         One row per run (period, status, stats)
  report_rows:  Net tips and per-role hours per worker, in report order
  diagnostics:  Non-fatal problems recorded by the run
  postings:     Ledger journal (direct tips and tip-out transfers)

INDEXES:
  - idx_runs_period: "which runs covered this period"
  - idx_postings_worker: per-worker journal lookups

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite serialises writers anyway;
  the mutex keeps the multi-statement save atomic from Go's side too.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so the API can read old
  runs while a new one is being saved.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  res, _ := run.Execute(ctx)
  err = store.SaveResult(ctx, res)

SEE ALSO:
  - payroll/run.go: Result
  - api/handlers.go: run endpoints reading from the archive
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Astoria-Consulting/mad-dogs/payroll"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrDuplicateRun = errors.New("run already archived")
)

// timeLayout is fixed-width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Store archives payroll runs in SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		timezone TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		stats_json TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_period
		ON runs(period_start, period_end);

	CREATE TABLE IF NOT EXISTS report_rows (
		run_id TEXT NOT NULL REFERENCES runs(id),
		position INTEGER NOT NULL,
		worker_id TEXT NOT NULL,
		worker_name TEXT NOT NULL,
		net_tips INTEGER NOT NULL,
		kitchen_ns INTEGER NOT NULL,
		bartender_ns INTEGER NOT NULL,
		server_ns INTEGER NOT NULL,
		host_ns INTEGER NOT NULL,
		PRIMARY KEY (run_id, worker_id)
	);

	CREATE TABLE IF NOT EXISTS diagnostics (
		run_id TEXT NOT NULL REFERENCES runs(id),
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		payment_id TEXT,
		order_id TEXT,
		worker_id TEXT,
		message TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE TABLE IF NOT EXISTS postings (
		run_id TEXT NOT NULL REFERENCES runs(id),
		worker_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		delta INTEGER NOT NULL,
		payment_id TEXT,
		order_id TEXT,
		category TEXT,
		line_item TEXT,
		PRIMARY KEY (run_id, worker_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_postings_worker
		ON postings(worker_id, run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORDS
// =============================================================================

// RunRecord is an archived run. Rows and Diagnostics are only populated by GetRun.
type RunRecord struct {
	ID          string
	PeriodStart string
	PeriodEnd   string
	Timezone    string
	Status      string
	Error       string
	Stats       payroll.Stats
	StartedAt   time.Time
	FinishedAt  time.Time
	Rows        []payroll.ReportRow
	Diagnostics []DiagnosticRecord
}

// DiagnosticRecord is an archived diagnostic. Only the error message is
// kept, not the error value.
type DiagnosticRecord struct {
	Kind      string
	PaymentID string
	OrderID   string
	WorkerID  string
	Message   string
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SAVE
// =============================================================================

// SaveResult archives a completed run: header, rows, diagnostics and journal.
func (s *Store) SaveResult(ctx context.Context, res *payroll.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	statsJSON, err := json.Marshal(res.Stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	err = s.insertRun(ctx, sqlTx, res.RunID, res.Period, StatusCompleted, "", string(statsJSON), res.StartedAt, res.FinishedAt)
	if err != nil {
		return err
	}

	for i, row := range res.Rows {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO report_rows
			(run_id, position, worker_id, worker_name, net_tips, kitchen_ns, bartender_ns, server_ns, host_ns)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, res.RunID, i, string(row.WorkerID), row.WorkerName, int64(row.NetTips),
			int64(row.Kitchen()), int64(row.Bartender()), int64(row.Server()), int64(row.Host()))
		if err != nil {
			return fmt.Errorf("failed to insert report row: %w", err)
		}
	}

	for i, d := range res.Diagnostics {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO diagnostics (run_id, seq, kind, payment_id, order_id, worker_id, message)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, res.RunID, i, string(d.Kind), nullString(string(d.PaymentID)), nullString(string(d.OrderID)),
			nullString(string(d.WorkerID)), d.Message)
		if err != nil {
			return fmt.Errorf("failed to insert diagnostic: %w", err)
		}
	}

	if res.Ledger != nil {
		for _, b := range res.Ledger.Balances() {
			for seq, p := range res.Ledger.Journal(b.WorkerID) {
				_, err := sqlTx.ExecContext(ctx, `
					INSERT INTO postings (run_id, worker_id, seq, kind, delta, payment_id, order_id, category, line_item)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				`, res.RunID, string(b.WorkerID), seq, string(p.Kind), int64(p.Delta),
					nullString(string(p.PaymentID)), nullString(string(p.OrderID)),
					nullString(p.Category), nullString(p.LineItem))
				if err != nil {
					return fmt.Errorf("failed to insert posting: %w", err)
				}
			}
		}
	}

	return sqlTx.Commit()
}

// SaveFailure archives a run that aborted during setup or was canceled.
func (s *Store) SaveFailure(ctx context.Context, runID string, period payroll.Period, startedAt time.Time, runErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	return s.insertRun(ctx, s.db, runID, period, StatusFailed, msg, "", startedAt, time.Now())
}

func (s *Store) insertRun(ctx context.Context, db execer, id string, period payroll.Period, status, errMsg, statsJSON string, started, finished time.Time) error {
	tz := "UTC"
	if period.Location != nil {
		tz = period.Location.String()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO runs (id, period_start, period_end, timezone, status, error, stats_json, started_at, finished_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		period.Start.Format(payroll.DateLayout),
		period.End.Format(payroll.DateLayout),
		tz,
		status,
		nullString(errMsg),
		nullString(statsJSON),
		started.UTC().Format(timeLayout),
		finished.UTC().Format(timeLayout),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateRun, id)
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

const runColumns = `id, period_start, period_end, timezone, status, error, stats_json, started_at, finished_at`

// GetRun returns a run with its rows and diagnostics.
func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if rec.Rows, err = s.queryRows(ctx, id); err != nil {
		return nil, err
	}
	if rec.Diagnostics, err = s.queryDiagnostics(ctx, id); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRuns returns run headers, newest first. A limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *rec)
	}
	return runs, rows.Err()
}

// HasCompletedRun reports whether any completed run covers exactly period.
func (s *Store) HasCompletedRun(ctx context.Context, period payroll.Period) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM runs
		WHERE period_start = ? AND period_end = ? AND status = ?
	`, period.Start.Format(payroll.DateLayout), period.End.Format(payroll.DateLayout), StatusCompleted).Scan(&count)

	return count > 0, err
}

// Journal returns a worker's archived postings for a run, in posting order.
func (s *Store) Journal(ctx context.Context, runID string, worker payroll.WorkerID) ([]payroll.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, delta, payment_id, order_id, category, line_item
		FROM postings
		WHERE run_id = ? AND worker_id = ?
		ORDER BY seq ASC
	`, runID, string(worker))
	if err != nil {
		return nil, fmt.Errorf("failed to query postings: %w", err)
	}
	defer rows.Close()

	var out []payroll.Posting
	for rows.Next() {
		var (
			kind                        string
			delta                       int64
			payment, order, cat, lineID sql.NullString
		)
		if err := rows.Scan(&kind, &delta, &payment, &order, &cat, &lineID); err != nil {
			return nil, fmt.Errorf("failed to scan posting: %w", err)
		}
		out = append(out, payroll.Posting{
			Kind:      payroll.PostingKind(kind),
			Delta:     payroll.Cents(delta),
			PaymentID: payroll.PaymentID(payment.String),
			OrderID:   payroll.OrderID(order.String),
			Category:  cat.String,
			LineItem:  lineID.String,
		})
	}
	return out, rows.Err()
}

// Reset clears every table. For tests and local development.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"postings", "diagnostics", "report_rows", "runs"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) queryRows(ctx context.Context, runID string) ([]payroll.ReportRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT worker_id, worker_name, net_tips, kitchen_ns, bartender_ns, server_ns, host_ns
		FROM report_rows
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query report rows: %w", err)
	}
	defer rows.Close()

	var out []payroll.ReportRow
	for rows.Next() {
		var (
			row                                payroll.ReportRow
			workerID                           string
			net, kitchen, bartender, srv, host int64
		)
		if err := rows.Scan(&workerID, &row.WorkerName, &net, &kitchen, &bartender, &srv, &host); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		row.WorkerID = payroll.WorkerID(workerID)
		row.NetTips = payroll.Cents(net)
		row.Hours[payroll.RoleKitchen] = time.Duration(kitchen)
		row.Hours[payroll.RoleBartender] = time.Duration(bartender)
		row.Hours[payroll.RoleServer] = time.Duration(srv)
		row.Hours[payroll.RoleHost] = time.Duration(host)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) queryDiagnostics(ctx context.Context, runID string) ([]DiagnosticRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, payment_id, order_id, worker_id, message
		FROM diagnostics
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query diagnostics: %w", err)
	}
	defer rows.Close()

	var out []DiagnosticRecord
	for rows.Next() {
		var (
			d                        DiagnosticRecord
			payment, order, workerID sql.NullString
		)
		if err := rows.Scan(&d.Kind, &payment, &order, &workerID, &d.Message); err != nil {
			return nil, fmt.Errorf("failed to scan diagnostic: %w", err)
		}
		d.PaymentID, d.OrderID, d.WorkerID = payment.String, order.String, workerID.String
		out = append(out, d)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*RunRecord, error) {
	var (
		rec                     RunRecord
		errMsg, stats, finished sql.NullString
		started                 string
	)
	err := sc.Scan(&rec.ID, &rec.PeriodStart, &rec.PeriodEnd, &rec.Timezone, &rec.Status,
		&errMsg, &stats, &started, &finished)
	if err != nil {
		return nil, err
	}
	rec.Error = errMsg.String
	if stats.Valid {
		if err := json.Unmarshal([]byte(stats.String), &rec.Stats); err != nil {
			return nil, fmt.Errorf("decode stats for run %s: %w", rec.ID, err)
		}
	}
	rec.StartedAt, _ = time.Parse(timeLayout, started)
	if finished.Valid {
		rec.FinishedAt, _ = time.Parse(timeLayout, finished.String)
	}
	return &rec, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY"))
}
