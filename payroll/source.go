package payroll

import (
	"context"
	"time"
)

// =============================================================================
// COLLABORATORS - Point-of-sale feeds consumed by a run
// =============================================================================

// Source provides the point-of-sale data for a run. Implementations handle
// pagination themselves and return fully materialized lists.
type Source interface {
	// TeamMembers returns every known worker.
	TeamMembers(ctx context.Context) ([]Worker, error)

	// Shifts returns shifts starting in [from, to).
	Shifts(ctx context.Context, from, to time.Time) ([]Shift, error)

	// Categories returns the catalog categories.
	Categories(ctx context.Context) ([]Category, error)

	// Payments returns payments created in [from, to).
	Payments(ctx context.Context, from, to time.Time) ([]Payment, error)

	// Order returns the order body, or nil when none is retrievable.
	Order(ctx context.Context, id OrderID) (*Order, error)
}

// CatalogResolver follows item variation -> item -> category for a sold
// catalog object. Failures are not retried by the engine.
type CatalogResolver interface {
	CategoryFor(ctx context.Context, id CatalogObjectID) (CategoryID, error)
}
