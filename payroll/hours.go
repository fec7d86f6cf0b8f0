package payroll

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// HOURS - Worked time per worker per role, net of breaks
// =============================================================================

// RoleHours holds worked time for each canonical role, indexed by Role.
type RoleHours [len(Roles)]time.Duration

// Get returns the worked time for a role.
func (h RoleHours) Get(r Role) time.Duration { return h[r] }

// Total returns worked time across all roles.
func (h RoleHours) Total() time.Duration {
	var total time.Duration
	for _, d := range h {
		total += d
	}
	return total
}

// Hours is the read-only per-worker summary produced by AccumulateHours.
type Hours struct {
	byWorker map[WorkerID]*RoleHours
}

// AccumulateHours sums (end - start) - breaks per (worker, role).
// Titles outside the canonical roles contribute zero and are returned as
// DataErrors; the worker still gets a zeroed entry.
func AccumulateHours(shifts []Shift, logger *zap.Logger) (*Hours, []error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hours{byWorker: make(map[WorkerID]*RoleHours)}
	var errs []error
	for _, s := range shifts {
		totals := h.byWorker[s.WorkerID]
		if totals == nil {
			totals = &RoleHours{}
			h.byWorker[s.WorkerID] = totals
		}

		role, err := ParseRole(s.Title)
		if err != nil {
			var de *DataError
			if errors.As(err, &de) {
				de.WorkerID = s.WorkerID
			}
			errs = append(errs, err)
			continue
		}

		worked := s.Worked()
		if worked < 0 {
			err := &DataError{
				WorkerID: s.WorkerID,
				Field:    "worked",
				Value:    fmt.Sprintf("shift %s worked %s", s.ID, worked),
				Err:      ErrDataError,
			}
			logger.Warn("breaks exceed shift length", zap.String("shift_id", s.ID), zap.Error(err))
			errs = append(errs, err)
			worked = 0
		}
		totals[role] += worked
	}
	return h, errs
}

// For returns the worker's totals; unseen workers get all zeros.
func (h *Hours) For(id WorkerID) RoleHours {
	if t := h.byWorker[id]; t != nil {
		return *t
	}
	return RoleHours{}
}

// FormatDuration renders d as hours:minutes:seconds with unbounded hours,
// e.g. 7h30m -> "7:30:00" and 31h15m -> "31:15:00".
func FormatDuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%s%d:%02d:%02d", sign, secs/3600, (secs/60)%60, secs%60)
}
