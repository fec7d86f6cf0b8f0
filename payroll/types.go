/*
Package payroll provides the tip-pooling engine for a restaurant pay period.

PURPOSE:
  Reconciles point-of-sale shifts, payments and orders into a per-worker net
  tip ledger and a per-role hours summary. For every line item sold, the
  engine decides which on-duty workers surrender a share of the sale as
  tip-out, which on-duty workers receive it, and posts the result into a
  shared ledger while payments are processed concurrently.

KEY CONCEPTS IN THIS FILE (types.go):
  - Cents: integer minor-currency amounts (never floats)
  - Worker, Shift, Break: who was clocked in, as what, and when
  - Category, LineItem, Order, Payment: what was sold and who rang it

DESIGN PRINCIPLES:
  1. Integer cents everywhere; fractional percentages go through decimal.Decimal
  2. Immutable inputs: feeds are fetched once and never mutated
  3. Explicit configuration: no package-level mutable state
  4. Partial failure isolation: one bad payment never aborts a run

SEE ALSO:
  - routing.go: category to role routing
  - allocator.go: per line item tip-out
  - run.go: concurrent orchestration
*/
package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// Cents is an amount in minor currency units.
type Cents int64

// Decimal returns the amount in major units (dollars).
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String renders the amount in major units with two decimals.
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type WorkerID string
type OrderID string
type PaymentID string
type CategoryID string
type CatalogObjectID string

// =============================================================================
// TEAM AND LABOR
// =============================================================================

// Worker is a team member record from the point-of-sale.
type Worker struct {
	ID      WorkerID
	Name    string
	HiredAt time.Time
}

// Break is an interval within a shift that does not count as worked time.
type Break struct {
	Start time.Time
	End   time.Time
}

// Duration returns the length of the break, zero if malformed.
func (b Break) Duration() time.Duration {
	if b.End.Before(b.Start) {
		return 0
	}
	return b.End.Sub(b.Start)
}

// Shift is one clocked-in interval for a worker under a wage title.
// Title is the raw title from the labor feed; it is mapped to a Role by ParseRole.
type Shift struct {
	ID       string
	WorkerID WorkerID
	Title    string
	Start    time.Time
	End      time.Time
	Breaks   []Break
}

// Covers reports whether at falls within [Start, End], inclusive on both ends.
func (s Shift) Covers(at time.Time) bool {
	return !at.Before(s.Start) && !at.After(s.End)
}

// Worked returns (End - Start) minus the sum of break durations.
func (s Shift) Worked() time.Duration {
	worked := s.End.Sub(s.Start)
	for _, b := range s.Breaks {
		worked -= b.Duration()
	}
	return worked
}

// =============================================================================
// CATALOG AND SALES
// =============================================================================

// Category is a catalog category; its Name keys the routing table.
type Category struct {
	ID   CategoryID
	Name string
}

// LineItem is one sold line of an order.
// CatalogObjectID is empty for custom amounts and other non-item charges.
type LineItem struct {
	UID             string
	Name            string
	GrossSales      Cents
	CatalogObjectID CatalogObjectID
}

// Order is an immutable point-of-sale order.
type Order struct {
	ID        OrderID
	CreatedAt time.Time
	LineItems []LineItem
}

// Payment links a tender to its order and the cashier who rang it.
// TipMoney is nil when the payment carried no card tip.
type Payment struct {
	ID        PaymentID
	OrderID   OrderID
	CashierID WorkerID
	CreatedAt time.Time
	TipMoney  *Cents
}

// Tip returns the direct tip amount and whether one was present.
func (p Payment) Tip() (Cents, bool) {
	if p.TipMoney == nil {
		return 0, false
	}
	return *p.TipMoney, true
}
