package payroll_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Astoria-Consulting/mad-dogs/payroll"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var day = time.Date(2021, time.August, 16, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func cents(c int64) *payroll.Cents {
	v := payroll.Cents(c)
	return &v
}

func shift(worker, title string, start, end time.Time, breaks ...payroll.Break) payroll.Shift {
	return payroll.Shift{
		ID:       worker + "-" + title + "-" + start.Format("1504"),
		WorkerID: payroll.WorkerID(worker),
		Title:    title,
		Start:    start,
		End:      end,
		Breaks:   breaks,
	}
}

func defaultRouting(t *testing.T) *payroll.RoutingTable {
	t.Helper()
	table, err := payroll.NewRoutingTable(payroll.DefaultRoutingRules(), payroll.DefaultPercentages())
	require.NoError(t, err)
	return table
}

// fakeSource is an in-memory Source and CatalogResolver.
// Catalog objects are named "<category>-item" and resolve to category "<category>".
type fakeSource struct {
	mu sync.Mutex

	team       []payroll.Worker
	shifts     []payroll.Shift
	categories []payroll.Category
	payments   []payroll.Payment
	orders     map[payroll.OrderID]*payroll.Order

	failTeam   error
	failOrders map[payroll.OrderID]error
	orderCalls map[payroll.OrderID]int
	brokenItem map[payroll.CatalogObjectID]bool
}

func newFakeSource() *fakeSource {
	src := &fakeSource{
		orders:     make(map[payroll.OrderID]*payroll.Order),
		failOrders: make(map[payroll.OrderID]error),
		orderCalls: make(map[payroll.OrderID]int),
		brokenItem: make(map[payroll.CatalogObjectID]bool),
	}
	for _, rule := range payroll.DefaultRoutingRules() {
		src.categories = append(src.categories, payroll.Category{ID: payroll.CategoryID(rule.Category), Name: rule.Category})
	}
	src.categories = append(src.categories, payroll.Category{ID: "Specials", Name: "Specials"})
	return src
}

func (f *fakeSource) worker(id, name string) *fakeSource {
	f.team = append(f.team, payroll.Worker{ID: payroll.WorkerID(id), Name: name})
	return f
}

func (f *fakeSource) order(id string, created time.Time, items ...payroll.LineItem) *fakeSource {
	f.orders[payroll.OrderID(id)] = &payroll.Order{ID: payroll.OrderID(id), CreatedAt: created, LineItems: items}
	return f
}

func (f *fakeSource) pay(id, orderID, cashier string, tip *payroll.Cents) *fakeSource {
	f.payments = append(f.payments, payroll.Payment{
		ID: payroll.PaymentID(id), OrderID: payroll.OrderID(orderID), CashierID: payroll.WorkerID(cashier), TipMoney: tip,
	})
	return f
}

func item(category string, gross int64) payroll.LineItem {
	return payroll.LineItem{
		UID:             category + "-line",
		Name:            category,
		GrossSales:      payroll.Cents(gross),
		CatalogObjectID: payroll.CatalogObjectID(category + "-item"),
	}
}

func (f *fakeSource) TeamMembers(context.Context) ([]payroll.Worker, error) {
	if f.failTeam != nil {
		return nil, f.failTeam
	}
	return f.team, nil
}

func (f *fakeSource) Shifts(context.Context, time.Time, time.Time) ([]payroll.Shift, error) {
	return f.shifts, nil
}

func (f *fakeSource) Categories(context.Context) ([]payroll.Category, error) {
	return f.categories, nil
}

func (f *fakeSource) Payments(context.Context, time.Time, time.Time) ([]payroll.Payment, error) {
	return f.payments, nil
}

func (f *fakeSource) Order(_ context.Context, id payroll.OrderID) (*payroll.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderCalls[id]++
	if err := f.failOrders[id]; err != nil {
		return nil, err
	}
	return f.orders[id], nil
}

func (f *fakeSource) CategoryFor(_ context.Context, id payroll.CatalogObjectID) (payroll.CategoryID, error) {
	if f.brokenItem[id] {
		return "", errors.New("catalog object has no item_variation_data")
	}
	const suffix = "-item"
	s := string(id)
	if len(s) <= len(suffix) || s[len(s)-len(suffix):] != suffix {
		return "", &payroll.CatalogResolutionError{CatalogObjectID: id, Step: "item"}
	}
	return payroll.CategoryID(s[:len(s)-len(suffix)]), nil
}

// harness wires the engine pieces the way Run does, for unit tests.
type harness struct {
	src       *fakeSource
	ledger    *payroll.TipLedger
	index     *payroll.ShiftIndex
	allocator *payroll.Allocator
	processor *payroll.Processor
}

func newHarness(t *testing.T, src *fakeSource) *harness {
	t.Helper()
	h := &harness{src: src, ledger: payroll.NewTipLedger()}
	h.index = payroll.NewShiftIndex(src.shifts, nil)
	for _, id := range h.index.Workers() {
		h.ledger.Touch(id)
	}
	h.allocator = payroll.NewAllocator(defaultRouting(t), h.index, h.ledger, src, src.categories, nil)
	h.processor = payroll.NewProcessor(payroll.ProcessorDeps{
		Source:    src,
		Allocator: h.allocator,
		Ledger:    h.ledger,
		Shifts:    h.index,
	})
	return h
}

func (h *harness) balance(t *testing.T, id string) payroll.Cents {
	t.Helper()
	b, ok := h.ledger.Balance(payroll.WorkerID(id))
	require.True(t, ok, "worker %s has no ledger entry", id)
	return b
}
