package payroll_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Astoria-Consulting/mad-dogs/payroll"
)

func TestShiftIndex_ClosedIntervalBothEnds(t *testing.T) {
	// GIVEN: A bartender clocked in from 16:00 to 23:00
	idx := payroll.NewShiftIndex([]payroll.Shift{
		shift("bar-1", "Bartender", at(16, 0), at(23, 0)),
	}, nil)
	bar := []payroll.Role{payroll.RoleBartender}

	// THEN: Both boundary instants match, one nanosecond outside does not
	assert.Equal(t, []payroll.WorkerID{"bar-1"}, idx.OnDuty(bar, at(16, 0)))
	assert.Equal(t, []payroll.WorkerID{"bar-1"}, idx.OnDuty(bar, at(23, 0)))
	assert.Empty(t, idx.OnDuty(bar, at(16, 0).Add(-time.Nanosecond)))
	assert.Empty(t, idx.OnDuty(bar, at(23, 0).Add(time.Nanosecond)))
}

func TestShiftIndex_FiltersByRoleInArrivalOrder(t *testing.T) {
	idx := payroll.NewShiftIndex([]payroll.Shift{
		shift("srv-2", "Server", at(10, 0), at(18, 0)),
		shift("cook", "Kitchen", at(10, 0), at(18, 0)),
		shift("bar-1", "Bartender", at(12, 0), at(20, 0)),
		shift("srv-1", "Server", at(11, 0), at(15, 0)),
	}, nil)

	got := idx.OnDuty([]payroll.Role{payroll.RoleServer, payroll.RoleBartender}, at(13, 0))

	assert.Equal(t, []payroll.WorkerID{"srv-2", "bar-1", "srv-1"}, got)
	assert.Equal(t, []payroll.WorkerID{"cook"}, idx.OnDuty([]payroll.Role{payroll.RoleKitchen}, at(13, 0)))
}

func TestShiftIndex_WorkerListedOnce(t *testing.T) {
	// GIVEN: Overlapping shifts for the same worker in two matching roles
	idx := payroll.NewShiftIndex([]payroll.Shift{
		shift("flex", "Server", at(10, 0), at(14, 0)),
		shift("flex", "Bartender", at(14, 0), at(20, 0)),
	}, nil)

	// WHEN: Querying the handover instant where both shifts cover
	got := idx.OnDuty([]payroll.Role{payroll.RoleServer, payroll.RoleBartender}, at(14, 0))

	assert.Equal(t, []payroll.WorkerID{"flex"}, got)
}

func TestShiftIndex_EmptyResults(t *testing.T) {
	idx := payroll.NewShiftIndex([]payroll.Shift{
		shift("dish", "Dishwasher", at(10, 0), at(18, 0)),
		shift("srv", "Server", at(10, 0), at(18, 0)),
	}, nil)

	assert.Empty(t, idx.OnDuty(nil, at(12, 0)), "no roles means nobody")
	assert.Empty(t, idx.OnDuty([]payroll.Role{payroll.RoleHost}, at(12, 0)))
	assert.Empty(t, idx.OnDuty([]payroll.Role{payroll.RoleServer}, at(9, 0)))

	// Unknown titles never match but the worker still counts as clocked in
	assert.True(t, idx.Clocked("dish"))
	assert.False(t, idx.Clocked("ghost"))
	assert.Equal(t, []payroll.WorkerID{"dish", "srv"}, idx.Workers())
}
