package payroll_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Astoria-Consulting/mad-dogs/payroll"
)

func TestParsePeriod_Bounds(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	p, err := payroll.ParsePeriod("2021-08-16", "2021-08-31", la)
	require.NoError(t, err)

	from, to := p.Bounds()
	assert.Equal(t, time.Date(2021, time.August, 16, 0, 0, 0, 0, la), from)
	assert.Equal(t, time.Date(2021, time.September, 1, 0, 0, 0, 0, la), to)
	assert.Equal(t, 16, p.Days())
	assert.Equal(t, "[2021-08-16, 2021-08-31]", p.String())

	// Late on the last day counts; midnight after does not
	assert.True(t, p.Contains(time.Date(2021, time.August, 31, 23, 59, 0, 0, la)))
	assert.False(t, p.Contains(to))
	assert.False(t, p.Contains(from.Add(-time.Second)))
}

func TestParsePeriod_SingleDay(t *testing.T) {
	p, err := payroll.ParsePeriod("2021-08-11", "2021-08-11", time.UTC)

	require.NoError(t, err)
	assert.Equal(t, 1, p.Days())
}

func TestParsePeriod_Invalid(t *testing.T) {
	_, err := payroll.ParsePeriod("2021-08-31", "2021-08-16", time.UTC)
	assert.ErrorIs(t, err, payroll.ErrInvalidPeriod)

	_, err = payroll.ParsePeriod("08/16/2021", "2021-08-31", time.UTC)
	assert.Error(t, err)
}

func TestPayPeriodOf(t *testing.T) {
	tests := []struct {
		at         time.Time
		start, end string
	}{
		{time.Date(2021, time.August, 1, 12, 0, 0, 0, time.UTC), "2021-08-01", "2021-08-15"},
		{time.Date(2021, time.August, 15, 23, 0, 0, 0, time.UTC), "2021-08-01", "2021-08-15"},
		{time.Date(2021, time.August, 16, 0, 0, 0, 0, time.UTC), "2021-08-16", "2021-08-31"},
		{time.Date(2021, time.February, 20, 0, 0, 0, 0, time.UTC), "2021-02-16", "2021-02-28"},
		{time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), "2024-02-16", "2024-02-29"},
	}
	for _, tt := range tests {
		p := payroll.PayPeriodOf(tt.at, time.UTC)
		assert.Equal(t, tt.start, p.Start.Format(payroll.DateLayout), tt.at)
		assert.Equal(t, tt.end, p.End.Format(payroll.DateLayout), tt.at)
	}
}

func TestPreviousPayPeriod(t *testing.T) {
	p := payroll.PreviousPayPeriod(time.Date(2021, time.September, 3, 0, 0, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, "[2021-08-16, 2021-08-31]", p.String())

	p = payroll.PreviousPayPeriod(time.Date(2021, time.January, 10, 0, 0, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, "[2020-12-16, 2020-12-31]", p.String())
}
