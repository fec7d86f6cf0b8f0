/*
allocator.go - Tip-out for a single sold line item

FLOW:
  1. No catalog reference      -> nothing to do
  2. Catalog lookup chain      -> category name (CatalogResolutionError on failure)
  3. Routing table             -> funding roles, receiving roles, percentage
  4. Shift index               -> funding and receiving workers on duty at sale time
  5. Either side empty         -> no transfer
  6. total = gross * pct       -> rounded half-to-even to whole cents
  7. Equal split on each side  -> debits on funders, credits on receivers

FUNDING MODEL:
  Tip-out is funded by every on-duty worker holding a funding role, split
  equally. The cashier who rang the sale is not charged separately; the
  cashier is only a funder if clocked in under a funding role.

ROUNDING:
  Each side is split with integer division. The remainder cents are handed
  out one at a time to the first workers in shift order, so debits and
  credits both sum to exactly the rounded total.
*/
package payroll

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Share is one worker's part of an allocation.
type Share struct {
	WorkerID WorkerID
	Amount   Cents
}

// Allocation describes what Apply posted for one line item.
type Allocation struct {
	Category string
	Total    Cents
	Debits   []Share
	Credits  []Share
}

// Applied reports whether any money moved.
func (a Allocation) Applied() bool { return a.Total != 0 && len(a.Debits) > 0 && len(a.Credits) > 0 }

// SaleRef identifies the sale a line item belongs to.
type SaleRef struct {
	PaymentID PaymentID
	OrderID   OrderID
	CashierID WorkerID
}

// Allocator applies tip-out for line items against a shared ledger.
type Allocator struct {
	routing    *RoutingTable
	shifts     *ShiftIndex
	ledger     *TipLedger
	catalog    CatalogResolver
	categories map[CategoryID]string
	logger     *zap.Logger
}

// NewAllocator wires an allocator. categories maps catalog category ids to
// the names used by the routing table.
func NewAllocator(routing *RoutingTable, shifts *ShiftIndex, ledger *TipLedger, catalog CatalogResolver, categories []Category, logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	names := make(map[CategoryID]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	return &Allocator{
		routing:    routing,
		shifts:     shifts,
		ledger:     ledger,
		catalog:    catalog,
		categories: names,
		logger:     logger,
	}
}

// Apply computes and posts the tip-out for item sold at at.
// A returned error means the item was skipped; nothing was posted.
func (a *Allocator) Apply(ctx context.Context, item LineItem, at time.Time, ref SaleRef) (Allocation, error) {
	if item.CatalogObjectID == "" {
		return Allocation{}, nil
	}

	category, err := a.categoryName(ctx, item.CatalogObjectID)
	if err != nil {
		return Allocation{}, err
	}

	rule, err := a.routing.Resolve(category)
	if err != nil {
		return Allocation{Category: category}, err
	}

	alloc := Allocation{Category: category}
	from := a.shifts.OnDuty(rule.From, at)
	to := a.shifts.OnDuty(rule.To, at)
	if len(from) == 0 || len(to) == 0 {
		a.logger.Debug("no coverage for tip-out",
			zap.String("order_id", string(ref.OrderID)),
			zap.String("category", category),
			zap.Int("funding", len(from)),
			zap.Int("receiving", len(to)))
		return alloc, nil
	}

	alloc.Total = Tipout(item.GrossSales, rule.Percentage)
	if alloc.Total == 0 {
		return alloc, nil
	}

	posting := Posting{
		PaymentID: ref.PaymentID,
		OrderID:   ref.OrderID,
		Category:  category,
		LineItem:  item.UID,
	}
	for i, amount := range Split(alloc.Total, len(from)) {
		p := posting
		p.Kind, p.Delta = PostingTipoutDebit, -amount
		a.ledger.Post(from[i], p)
		alloc.Debits = append(alloc.Debits, Share{WorkerID: from[i], Amount: amount})
	}
	for i, amount := range Split(alloc.Total, len(to)) {
		p := posting
		p.Kind, p.Delta = PostingTipoutCredit, amount
		a.ledger.Post(to[i], p)
		alloc.Credits = append(alloc.Credits, Share{WorkerID: to[i], Amount: amount})
	}
	return alloc, nil
}

func (a *Allocator) categoryName(ctx context.Context, id CatalogObjectID) (string, error) {
	if a.catalog == nil {
		return "", &CatalogResolutionError{CatalogObjectID: id, Step: "variation"}
	}
	categoryID, err := a.catalog.CategoryFor(ctx, id)
	if err != nil {
		if IsSkippable(err) {
			return "", err
		}
		return "", &CatalogResolutionError{CatalogObjectID: id, Step: "variation", Err: err}
	}
	name, ok := a.categories[categoryID]
	if !ok {
		return "", &CatalogResolutionError{CatalogObjectID: id, Step: "category"}
	}
	return name, nil
}

// Tipout returns gross * pct rounded half-to-even to whole cents.
func Tipout(gross Cents, pct decimal.Decimal) Cents {
	return Cents(decimal.NewFromInt(int64(gross)).Mul(pct).RoundBank(0).IntPart())
}

// Split divides total into n equal parts whose sum is exactly total.
// The remainder goes one cent at a time to the first parts.
func Split(total Cents, n int) []Cents {
	if n <= 0 {
		return nil
	}
	base := total / Cents(n)
	rem := total % Cents(n)
	step := Cents(1)
	if rem < 0 {
		step, rem = -1, -rem
	}
	parts := make([]Cents, n)
	for i := range parts {
		parts[i] = base
		if Cents(i) < rem {
			parts[i] += step
		}
	}
	return parts
}
