package payroll

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Inclusive date range for one payroll run
// =============================================================================

// DateLayout is the format accepted for period boundaries.
const DateLayout = "2006-01-02"

// Period is an inclusive range of calendar days in the reporting location.
//
// Examples:
//   - Second half of August: 2021-08-16 .. 2021-08-31
//   - Single day:            2021-08-11 .. 2021-08-11
type Period struct {
	Start    time.Time // midnight of the first day
	End      time.Time // midnight of the last day
	Location *time.Location
}

// NewPeriod builds a period from two dates, normalised to midnight in loc.
func NewPeriod(start, end time.Time, loc *time.Location) (Period, error) {
	if loc == nil {
		loc = time.UTC
	}
	p := Period{
		Start:    midnight(start, loc),
		End:      midnight(end, loc),
		Location: loc,
	}
	if p.End.Before(p.Start) {
		return Period{}, fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	return p, nil
}

// ParsePeriod parses two DateLayout dates in loc.
func ParsePeriod(start, end string, loc *time.Location) (Period, error) {
	if loc == nil {
		loc = time.UTC
	}
	s, err := time.ParseInLocation(DateLayout, start, loc)
	if err != nil {
		return Period{}, fmt.Errorf("parse period start: %w", err)
	}
	e, err := time.ParseInLocation(DateLayout, end, loc)
	if err != nil {
		return Period{}, fmt.Errorf("parse period end: %w", err)
	}
	return NewPeriod(s, e, loc)
}

// Bounds returns the half-open instant range [from, to) covered by the period.
func (p Period) Bounds() (from, to time.Time) {
	return p.Start, p.End.AddDate(0, 0, 1)
}

// Contains reports whether the instant falls on one of the period's days.
func (p Period) Contains(t time.Time) bool {
	from, to := p.Bounds()
	return !t.Before(from) && t.Before(to)
}

// Days returns the number of calendar days in the period.
func (p Period) Days() int {
	n := 0
	for d := p.Start; !d.After(p.End); d = d.AddDate(0, 0, 1) {
		n++
	}
	return n
}

func (p Period) String() string {
	return "[" + p.Start.Format(DateLayout) + ", " + p.End.Format(DateLayout) + "]"
}

// midnight keeps the calendar date as written and pins it to loc.
func midnight(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// PayPeriodOf returns the semi-monthly pay period containing t in loc:
// the 1st through the 15th, or the 16th through the last day of the month.
func PayPeriodOf(t time.Time, loc *time.Location) Period {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	if t.Day() <= 15 {
		return Period{Start: first, End: first.AddDate(0, 0, 14), Location: loc}
	}
	return Period{
		Start:    first.AddDate(0, 0, 15),
		End:      first.AddDate(0, 1, -1),
		Location: loc,
	}
}

// PreviousPayPeriod returns the last pay period that closed before now.
func PreviousPayPeriod(now time.Time, loc *time.Location) Period {
	current := PayPeriodOf(now, loc)
	return PayPeriodOf(current.Start.AddDate(0, 0, -1), loc)
}
