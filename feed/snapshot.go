/*
Package feed provides point-of-sale data sources for payroll runs.

PURPOSE:
  A Snapshot serves a JSON export of the point-of-sale account for a stretch of
  time: team members, labor shifts, the catalog, payments and their orders.
  It implements payroll.Source and payroll.CatalogResolver so a run can be
  replayed offline, exactly as it would against the live API.

JSON SHAPE (field names follow the point-of-sale API):
  {
    "team_members": [{"id": "TM1", "given_name": "Ana", "family_name": "Ruiz"}],
    "shifts": [{"id": "S1", "team_member_id": "TM1", "wage": {"title": "Server"},
                "start_at": "...", "end_at": "...",
                "breaks": [{"start_at": "...", "end_at": "..."}]}],
    "catalog": {
      "categories": [{"id": "C1", "name": "Liquor"}],
      "items":      [{"id": "I1", "name": "Well Whiskey", "category_id": "C1"}],
      "variations": [{"id": "V1", "item_id": "I1", "name": "Regular"}]
    },
    "payments": [{"id": "P1", "order_id": "O1", "employee_id": "TM1",
                  "created_at": "...", "tip_money": {"amount": 300, "currency": "USD"}}],
    "orders": [{"id": "O1", "created_at": "...",
                "line_items": [{"uid": "L1", "name": "Whiskey", "catalog_object_id": "V1",
                                "gross_sales_money": {"amount": 2000, "currency": "USD"}}]}]
  }

SEE ALSO:
  - payroll/source.go: the interfaces implemented here
*/
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Astoria-Consulting/mad-dogs/payroll"
)

// =============================================================================
// JSON RECORDS
// =============================================================================

type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

type TeamMember struct {
	ID         string    `json:"id"`
	GivenName  string    `json:"given_name"`
	FamilyName string    `json:"family_name"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

type Wage struct {
	Title string `json:"title"`
}

type BreakRecord struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

type ShiftRecord struct {
	ID           string        `json:"id"`
	TeamMemberID string        `json:"team_member_id"`
	Wage         Wage          `json:"wage"`
	StartAt      time.Time     `json:"start_at"`
	EndAt        time.Time     `json:"end_at"`
	Breaks       []BreakRecord `json:"breaks,omitempty"`
}

type CategoryRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ItemRecord struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CategoryID string `json:"category_id"`
}

type VariationRecord struct {
	ID     string `json:"id"`
	ItemID string `json:"item_id"`
	Name   string `json:"name"`
}

type Catalog struct {
	Categories []CategoryRecord  `json:"categories"`
	Items      []ItemRecord      `json:"items"`
	Variations []VariationRecord `json:"variations"`
}

type PaymentRecord struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"order_id"`
	EmployeeID string    `json:"employee_id"`
	CreatedAt  time.Time `json:"created_at"`
	TipMoney   *Money    `json:"tip_money,omitempty"`
}

type LineItemRecord struct {
	UID             string `json:"uid"`
	Name            string `json:"name"`
	CatalogObjectID string `json:"catalog_object_id,omitempty"`
	GrossSalesMoney Money  `json:"gross_sales_money"`
}

type OrderRecord struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	LineItems []LineItemRecord `json:"line_items,omitempty"`
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Export is the JSON document written by the point-of-sale export.
type Export struct {
	TeamMembers []TeamMember    `json:"team_members"`
	Shifts      []ShiftRecord   `json:"shifts"`
	Catalog     Catalog         `json:"catalog"`
	Payments    []PaymentRecord `json:"payments"`
	Orders      []OrderRecord   `json:"orders"`
}

// Snapshot serves an Export with id lookups. It is read-only and safe for
// concurrent use.
type Snapshot struct {
	data       Export
	orders     map[string]*OrderRecord
	variations map[string]VariationRecord
	items      map[string]ItemRecord
}

// New indexes an export.
func New(data Export) *Snapshot {
	s := &Snapshot{
		data:       data,
		orders:     make(map[string]*OrderRecord, len(data.Orders)),
		variations: make(map[string]VariationRecord, len(data.Catalog.Variations)),
		items:      make(map[string]ItemRecord, len(data.Catalog.Items)),
	}
	for i := range s.data.Orders {
		s.orders[s.data.Orders[i].ID] = &s.data.Orders[i]
	}
	for _, v := range data.Catalog.Variations {
		s.variations[v.ID] = v
	}
	for _, it := range data.Catalog.Items {
		s.items[it.ID] = it
	}
	return s
}

// Load reads a snapshot file.
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes an export and indexes it.
func Parse(r io.Reader) (*Snapshot, error) {
	var data Export
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return New(data), nil
}

var (
	_ payroll.Source          = (*Snapshot)(nil)
	_ payroll.CatalogResolver = (*Snapshot)(nil)
)

// TeamMembers returns every team member with "given family" as the name.
func (s *Snapshot) TeamMembers(ctx context.Context) ([]payroll.Worker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]payroll.Worker, 0, len(s.data.TeamMembers))
	for _, tm := range s.data.TeamMembers {
		out = append(out, payroll.Worker{
			ID:      payroll.WorkerID(tm.ID),
			Name:    strings.TrimSpace(tm.GivenName + " " + tm.FamilyName),
			HiredAt: tm.CreatedAt,
		})
	}
	return out, nil
}

// Shifts returns shifts that start within [from, to).
func (s *Snapshot) Shifts(ctx context.Context, from, to time.Time) ([]payroll.Shift, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []payroll.Shift
	for _, sr := range s.data.Shifts {
		if sr.StartAt.Before(from) || !sr.StartAt.Before(to) {
			continue
		}
		shift := payroll.Shift{
			ID:       sr.ID,
			WorkerID: payroll.WorkerID(sr.TeamMemberID),
			Title:    sr.Wage.Title,
			Start:    sr.StartAt,
			End:      sr.EndAt,
		}
		for _, b := range sr.Breaks {
			shift.Breaks = append(shift.Breaks, payroll.Break{Start: b.StartAt, End: b.EndAt})
		}
		out = append(out, shift)
	}
	return out, nil
}

// Categories returns the catalog categories.
func (s *Snapshot) Categories(ctx context.Context) ([]payroll.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]payroll.Category, 0, len(s.data.Catalog.Categories))
	for _, c := range s.data.Catalog.Categories {
		out = append(out, payroll.Category{ID: payroll.CategoryID(c.ID), Name: c.Name})
	}
	return out, nil
}

// Payments returns payments created within [from, to).
func (s *Snapshot) Payments(ctx context.Context, from, to time.Time) ([]payroll.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []payroll.Payment
	for _, pr := range s.data.Payments {
		if pr.CreatedAt.Before(from) || !pr.CreatedAt.Before(to) {
			continue
		}
		p := payroll.Payment{
			ID:        payroll.PaymentID(pr.ID),
			OrderID:   payroll.OrderID(pr.OrderID),
			CashierID: payroll.WorkerID(pr.EmployeeID),
			CreatedAt: pr.CreatedAt,
		}
		if pr.TipMoney != nil {
			tip := payroll.Cents(pr.TipMoney.Amount)
			p.TipMoney = &tip
		}
		out = append(out, p)
	}
	return out, nil
}

// Order returns the order with id, or nil if the snapshot has no body for it.
func (s *Snapshot) Order(ctx context.Context, id payroll.OrderID) (*payroll.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, ok := s.orders[string(id)]
	if !ok {
		return nil, nil
	}
	order := &payroll.Order{ID: payroll.OrderID(rec.ID), CreatedAt: rec.CreatedAt}
	for _, li := range rec.LineItems {
		order.LineItems = append(order.LineItems, payroll.LineItem{
			UID:             li.UID,
			Name:            li.Name,
			GrossSales:      payroll.Cents(li.GrossSalesMoney.Amount),
			CatalogObjectID: payroll.CatalogObjectID(li.CatalogObjectID),
		})
	}
	return order, nil
}

// CategoryFor follows variation -> item -> category id.
func (s *Snapshot) CategoryFor(ctx context.Context, id payroll.CatalogObjectID) (payroll.CategoryID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, ok := s.variations[string(id)]
	if !ok {
		return "", &payroll.CatalogResolutionError{CatalogObjectID: id, Step: "variation"}
	}
	it, ok := s.items[v.ItemID]
	if !ok {
		return "", &payroll.CatalogResolutionError{CatalogObjectID: id, Step: "item"}
	}
	if it.CategoryID == "" {
		return "", &payroll.CatalogResolutionError{CatalogObjectID: id, Step: "category"}
	}
	return payroll.CategoryID(it.CategoryID), nil
}
