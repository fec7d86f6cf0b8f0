package feed_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Astoria-Consulting/mad-dogs/feed"
	"github.com/Astoria-Consulting/mad-dogs/payroll"
)

func loadSnapshot(t *testing.T) *feed.Snapshot {
	t.Helper()
	snap, err := feed.Load("testdata/snapshot.json")
	require.NoError(t, err)
	return snap
}

func TestSnapshot_FiltersByWindow(t *testing.T) {
	snap := loadSnapshot(t)
	ctx := context.Background()
	from := time.Date(2021, time.August, 16, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	shifts, err := snap.Shifts(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, shifts, 2)
	assert.Equal(t, "Server", shifts[0].Title)
	require.Len(t, shifts[0].Breaks, 1)
	assert.Equal(t, 30*time.Minute, shifts[0].Breaks[0].Duration())

	payments, err := snap.Payments(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	tip, ok := payments[0].Tip()
	require.True(t, ok)
	assert.Equal(t, payroll.Cents(300), tip)
	assert.Equal(t, payroll.WorkerID("TM-ANA"), payments[0].CashierID)
}

func TestSnapshot_TeamMemberNames(t *testing.T) {
	team, err := loadSnapshot(t).TeamMembers(context.Background())

	require.NoError(t, err)
	require.Len(t, team, 2)
	assert.Equal(t, "Ana Ruiz", team[0].Name)
}

func TestSnapshot_Order(t *testing.T) {
	snap := loadSnapshot(t)
	ctx := context.Background()

	order, err := snap.Order(ctx, "O1")
	require.NoError(t, err)
	require.NotNil(t, order)
	require.Len(t, order.LineItems, 2)
	assert.Equal(t, payroll.Cents(2000), order.LineItems[0].GrossSales)

	missing, err := snap.Order(ctx, "O-NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSnapshot_CategoryResolution(t *testing.T) {
	snap := loadSnapshot(t)
	ctx := context.Background()

	cat, err := snap.CategoryFor(ctx, "V-WHISKEY")
	require.NoError(t, err)
	assert.Equal(t, payroll.CategoryID("CAT-LIQ"), cat)

	tests := []struct {
		id   payroll.CatalogObjectID
		step string
	}{
		{"V-UNKNOWN", "variation"},
		{"V-ORPHAN", "item"},
		{"V-LOOSE", "category"},
	}
	for _, tt := range tests {
		_, err := snap.CategoryFor(ctx, tt.id)
		assert.ErrorIs(t, err, payroll.ErrCatalogResolution, tt.id)
		var cre *payroll.CatalogResolutionError
		require.ErrorAs(t, err, &cre)
		assert.Equal(t, tt.step, cre.Step)
	}
}

func TestSnapshot_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loadSnapshot(t).TeamMembers(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestParse_RejectsMalformed(t *testing.T) {
	_, err := feed.Parse(strings.NewReader(`{"payments": [`))
	assert.Error(t, err)
}

func TestSnapshot_DrivesRun(t *testing.T) {
	// GIVEN: One day of service with a $20 liquor sale and a $3 tip
	snap := loadSnapshot(t)
	period, err := payroll.ParsePeriod("2021-08-16", "2021-08-16", time.UTC)
	require.NoError(t, err)
	routing, err := payroll.NewRoutingTable(payroll.DefaultRoutingRules(), payroll.DefaultPercentages())
	require.NoError(t, err)

	run, err := payroll.NewRun(payroll.RunConfig{Period: period, Routing: routing, Workers: 2}, snap, snap)
	require.NoError(t, err)

	// WHEN
	res, err := run.Execute(context.Background())

	// THEN: Bar takes 5% of the liquor, soda moves nothing, next day is excluded
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Ana Ruiz", res.Rows[0].WorkerName)
	assert.Equal(t, payroll.Cents(200), res.Rows[0].NetTips)
	assert.Equal(t, "Cy Park", res.Rows[1].WorkerName)
	assert.Equal(t, payroll.Cents(100), res.Rows[1].NetTips)
	assert.Equal(t, 7*time.Hour, res.Rows[1].Bartender())
	assert.Empty(t, res.Diagnostics)
}
