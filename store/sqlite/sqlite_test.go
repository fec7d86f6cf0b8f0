package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Astoria-Consulting/mad-dogs/payroll"
	"github.com/Astoria-Consulting/mad-dogs/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleResult(t *testing.T, id string, started time.Time) *payroll.Result {
	t.Helper()
	period, err := payroll.ParsePeriod("2021-08-16", "2021-08-31", time.UTC)
	require.NoError(t, err)

	ledger := payroll.NewTipLedger()
	ledger.Post("srv", payroll.Posting{Kind: payroll.PostingDirectTip, Delta: 300, PaymentID: "p-1"})
	ledger.Post("srv", payroll.Posting{Kind: payroll.PostingTipoutDebit, Delta: -100, OrderID: "o-1", Category: "Liquor", LineItem: "l-1"})
	ledger.Post("bar", payroll.Posting{Kind: payroll.PostingTipoutCredit, Delta: 100, OrderID: "o-1", Category: "Liquor", LineItem: "l-1"})

	var srvHours, barHours payroll.RoleHours
	srvHours[payroll.RoleServer] = 7*time.Hour + 30*time.Minute
	barHours[payroll.RoleBartender] = 7 * time.Hour

	return &payroll.Result{
		RunID:      id,
		Period:     period,
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Rows: []payroll.ReportRow{
			{WorkerID: "srv", WorkerName: "Ana Ruiz", NetTips: 200, Hours: srvHours},
			{WorkerID: "bar", WorkerName: "Cy Park", NetTips: 100, Hours: barHours},
		},
		Diagnostics: []payroll.Diagnostic{
			{Kind: payroll.DiagUnknownCategory, PaymentID: "p-2", OrderID: "o-2", Message: "unknown category: Specials"},
		},
		Stats:  payroll.Stats{Payments: 2, Processed: 2, DirectTips: 300, Tipouts: 100},
		Ledger: ledger,
	}
}

func TestStore_SaveAndGetRun(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	started := time.Date(2021, time.September, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveResult(ctx, sampleResult(t, "run-1", started)))

	rec, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, sqlite.StatusCompleted, rec.Status)
	assert.Equal(t, "2021-08-16", rec.PeriodStart)
	assert.Equal(t, "2021-08-31", rec.PeriodEnd)
	assert.Equal(t, "UTC", rec.Timezone)
	assert.True(t, started.Equal(rec.StartedAt))
	assert.Equal(t, payroll.Cents(300), rec.Stats.DirectTips)

	require.Len(t, rec.Rows, 2)
	assert.Equal(t, "Ana Ruiz", rec.Rows[0].WorkerName, "report order kept")
	assert.Equal(t, payroll.Cents(200), rec.Rows[0].NetTips)
	assert.Equal(t, 7*time.Hour+30*time.Minute, rec.Rows[0].Server())
	assert.Equal(t, 7*time.Hour, rec.Rows[1].Bartender())

	require.Len(t, rec.Diagnostics, 1)
	assert.Equal(t, "unknown_category", rec.Diagnostics[0].Kind)
	assert.Equal(t, "p-2", rec.Diagnostics[0].PaymentID)
	assert.Empty(t, rec.Diagnostics[0].WorkerID)
}

func TestStore_Journal(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveResult(ctx, sampleResult(t, "run-1", time.Now())))

	journal, err := store.Journal(ctx, "run-1", "srv")

	require.NoError(t, err)
	require.Len(t, journal, 2)
	assert.Equal(t, payroll.PostingDirectTip, journal[0].Kind)
	assert.Equal(t, payroll.PaymentID("p-1"), journal[0].PaymentID)
	assert.Equal(t, payroll.Cents(-100), journal[1].Delta)
	assert.Equal(t, "Liquor", journal[1].Category)
}

func TestStore_DuplicateRunRejected(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveResult(ctx, sampleResult(t, "run-1", time.Now())))

	err := store.SaveResult(ctx, sampleResult(t, "run-1", time.Now()))

	assert.ErrorIs(t, err, sqlite.ErrDuplicateRun)
}

func TestStore_GetRunNotFound(t *testing.T) {
	_, err := newStore(t).GetRun(context.Background(), "nope")

	assert.ErrorIs(t, err, sqlite.ErrRunNotFound)
}

func TestStore_ListRunsNewestFirst(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := time.Date(2021, time.September, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveResult(ctx, sampleResult(t, "run-old", base)))
	require.NoError(t, store.SaveResult(ctx, sampleResult(t, "run-new", base.Add(time.Hour))))
	period := sampleResult(t, "x", base).Period
	require.NoError(t, store.SaveFailure(ctx, "run-failed", period, base.Add(30*time.Minute), errors.New("unauthorized")))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"run-new", "run-failed", "run-old"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})
	assert.Equal(t, sqlite.StatusFailed, runs[1].Status)
	assert.Equal(t, "unauthorized", runs[1].Error)
	assert.Empty(t, runs[0].Rows, "headers only")

	limited, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_Reset(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveResult(ctx, sampleResult(t, "run-1", time.Now())))

	require.NoError(t, store.Reset(ctx))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestStore_HasCompletedRun(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	res := sampleResult(t, "run-1", time.Now())

	done, err := store.HasCompletedRun(ctx, res.Period)
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, store.SaveFailure(ctx, "run-0", res.Period, time.Now(), errors.New("timeout")))
	done, err = store.HasCompletedRun(ctx, res.Period)
	require.NoError(t, err)
	assert.False(t, done, "failed runs do not count")

	require.NoError(t, store.SaveResult(ctx, res))
	done, err = store.HasCompletedRun(ctx, res.Period)
	require.NoError(t, err)
	assert.True(t, done)
}
