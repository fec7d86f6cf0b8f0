package payroll

import (
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// SHIFT INDEX - Who was on the clock as what, and when
// =============================================================================

type indexedShift struct {
	Shift
	role Role
}

// ShiftIndex answers on-duty queries over a period's shifts.
// It is built once and read-only afterwards, so it needs no locking.
type ShiftIndex struct {
	shifts  []indexedShift
	workers []WorkerID
	seen    map[WorkerID]bool
}

// NewShiftIndex indexes shifts in arrival order. Shifts whose title is not a
// canonical role, or that end before they start, never match a query; the
// data problems themselves are reported by AccumulateHours.
func NewShiftIndex(shifts []Shift, logger *zap.Logger) *ShiftIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx := &ShiftIndex{seen: make(map[WorkerID]bool)}
	for _, s := range shifts {
		if !idx.seen[s.WorkerID] {
			idx.seen[s.WorkerID] = true
			idx.workers = append(idx.workers, s.WorkerID)
		}
		if s.End.Before(s.Start) {
			logger.Debug("shift ends before it starts, not indexed", zap.String("shift_id", s.ID))
			continue
		}
		role, err := ParseRole(s.Title)
		if err != nil {
			logger.Debug("shift not indexed", zap.String("shift_id", s.ID), zap.Error(err))
			continue
		}
		idx.shifts = append(idx.shifts, indexedShift{Shift: s, role: role})
	}
	return idx
}

// OnDuty returns every worker whose shift role is in roles and whose shift
// covers at (closed interval). Order follows shift arrival; a worker with two
// matching shifts is listed once.
func (idx *ShiftIndex) OnDuty(roles []Role, at time.Time) []WorkerID {
	set := newRoleSet(roles)
	if set.empty() {
		return nil
	}
	var out []WorkerID
	var listed map[WorkerID]bool
	for _, s := range idx.shifts {
		if !set.has(s.role) || !s.Covers(at) {
			continue
		}
		if listed == nil {
			listed = make(map[WorkerID]bool)
		}
		if listed[s.WorkerID] {
			continue
		}
		listed[s.WorkerID] = true
		out = append(out, s.WorkerID)
	}
	return out
}

// Workers returns every worker with at least one shift, in arrival order.
func (idx *ShiftIndex) Workers() []WorkerID {
	return append([]WorkerID(nil), idx.workers...)
}

// Clocked reports whether the worker has any shift in the period.
func (idx *ShiftIndex) Clocked(id WorkerID) bool {
	return idx.seen[id]
}
