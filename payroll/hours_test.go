package payroll_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Astoria-Consulting/mad-dogs/payroll"
)

func TestHours_SubtractBreaks(t *testing.T) {
	// GIVEN: An 8 hour server shift with a 30 minute break
	shifts := []payroll.Shift{
		shift("srv", "Server", at(10, 0), at(18, 0), payroll.Break{Start: at(13, 0), End: at(13, 30)}),
	}

	hours, errs := payroll.AccumulateHours(shifts, nil)

	// THEN: 7.5 hours credited to Server, nothing else
	assert.Empty(t, errs)
	got := hours.For("srv")
	assert.Equal(t, 7*time.Hour+30*time.Minute, got.Get(payroll.RoleServer))
	assert.Zero(t, got.Get(payroll.RoleKitchen))
	assert.Equal(t, "7:30:00", payroll.FormatDuration(got.Get(payroll.RoleServer)))
}

func TestHours_AccumulatePerRole(t *testing.T) {
	shifts := []payroll.Shift{
		shift("flex", "Server", at(10, 0), at(14, 0)),
		shift("flex", "Bartender", at(14, 0), at(20, 0),
			payroll.Break{Start: at(16, 0), End: at(16, 15)},
			payroll.Break{Start: at(18, 0), End: at(18, 15)}),
		shift("flex", "Server", day.Add(24*time.Hour+10*time.Hour), day.Add(24*time.Hour+12*time.Hour)),
	}

	hours, errs := payroll.AccumulateHours(shifts, nil)

	require.Empty(t, errs)
	got := hours.For("flex")
	assert.Equal(t, 6*time.Hour, got.Get(payroll.RoleServer))
	assert.Equal(t, 5*time.Hour+30*time.Minute, got.Get(payroll.RoleBartender))
	assert.Equal(t, 11*time.Hour+30*time.Minute, got.Total())
}

func TestHours_UnknownRoleIsDataError(t *testing.T) {
	// GIVEN: A shift under a title outside the canonical roles
	shifts := []payroll.Shift{
		shift("dish", "Dishwasher", at(10, 0), at(18, 0)),
	}

	hours, errs := payroll.AccumulateHours(shifts, nil)

	// THEN: Reported, zero hours, worker still present with zeroed totals
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], payroll.ErrUnknownRole)
	var de *payroll.DataError
	require.ErrorAs(t, errs[0], &de)
	assert.Equal(t, payroll.WorkerID("dish"), de.WorkerID)
	assert.Equal(t, payroll.RoleHours{}, hours.For("dish"))
}

func TestHours_BreaksLongerThanShiftClampToZero(t *testing.T) {
	shifts := []payroll.Shift{
		shift("srv", "Server", at(10, 0), at(11, 0), payroll.Break{Start: at(9, 0), End: at(12, 0)}),
	}

	hours, errs := payroll.AccumulateHours(shifts, nil)

	require.Len(t, errs, 1)
	assert.True(t, payroll.IsDataError(errs[0]))
	assert.Zero(t, hours.For("srv").Get(payroll.RoleServer))
}

func TestHours_UnseenWorkerIsZero(t *testing.T) {
	hours, _ := payroll.AccumulateHours(nil, nil)
	assert.Equal(t, payroll.RoleHours{}, hours.For("nobody"))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0:00:00", payroll.FormatDuration(0))
	assert.Equal(t, "31:15:09", payroll.FormatDuration(31*time.Hour+15*time.Minute+9*time.Second))
	assert.Equal(t, "0:00:59", payroll.FormatDuration(59*time.Second+900*time.Millisecond))
}
