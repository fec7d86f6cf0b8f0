/*
ledger.go - Shared per-worker tip ledger

PURPOSE:
  Holds each worker's running net tip balance for one run. Every direct
  tip credit and every tip-out debit/credit is posted here, and each
  posting is kept in the worker's journal so a balance can always be
  explained.

CONCURRENCY:
  Entries are created lazily under the index lock (RWMutex, double-checked).
  Each entry then has its own mutex: two allocations touching the same
  worker serialize on that worker only, never on the whole ledger.

INVARIANTS:
  - A balance always equals the sum of its journal deltas.
  - Postings are append-only; corrections would be new postings.
  - Updates commute, so the final state is independent of interleaving.
*/
package payroll

import (
	"sort"
	"sync"
)

// =============================================================================
// POSTINGS
// =============================================================================

type PostingKind string

const (
	PostingDirectTip    PostingKind = "direct_tip"    // card tip to the cashier
	PostingTipoutDebit  PostingKind = "tipout_debit"  // share paid by a funding worker
	PostingTipoutCredit PostingKind = "tipout_credit" // share paid to a receiving worker
)

// Posting is one immutable ledger movement.
type Posting struct {
	Kind      PostingKind
	Delta     Cents
	PaymentID PaymentID
	OrderID   OrderID
	Category  string
	LineItem  string
}

// =============================================================================
// TIP LEDGER
// =============================================================================

type ledgerEntry struct {
	mu       sync.Mutex
	balance  Cents
	postings []Posting
}

// TipLedger maps worker -> signed cents balance with per-worker locking.
type TipLedger struct {
	mu      sync.RWMutex
	entries map[WorkerID]*ledgerEntry
}

func NewTipLedger() *TipLedger {
	return &TipLedger{entries: make(map[WorkerID]*ledgerEntry)}
}

func (l *TipLedger) entry(id WorkerID) *ledgerEntry {
	l.mu.RLock()
	e := l.entries[id]
	l.mu.RUnlock()
	if e != nil {
		return e
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if e = l.entries[id]; e == nil {
		e = &ledgerEntry{}
		l.entries[id] = e
	}
	return e
}

// Touch creates a zero entry for the worker if none exists.
func (l *TipLedger) Touch(id WorkerID) {
	l.entry(id)
}

// Post applies p.Delta to the worker's balance and records the posting.
func (l *TipLedger) Post(id WorkerID, p Posting) {
	e := l.entry(id)
	e.mu.Lock()
	e.balance += p.Delta
	e.postings = append(e.postings, p)
	e.mu.Unlock()
}

// Balance returns the worker's balance and whether the worker has an entry.
func (l *TipLedger) Balance(id WorkerID) (Cents, bool) {
	l.mu.RLock()
	e := l.entries[id]
	l.mu.RUnlock()
	if e == nil {
		return 0, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance, true
}

// Journal returns a copy of the worker's postings in application order.
func (l *TipLedger) Journal(id WorkerID) []Posting {
	l.mu.RLock()
	e := l.entries[id]
	l.mu.RUnlock()
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Posting(nil), e.postings...)
}

// LedgerBalance is a point-in-time read of one entry.
type LedgerBalance struct {
	WorkerID WorkerID
	Balance  Cents
	Postings int
}

// Balances returns every entry sorted by worker id.
func (l *TipLedger) Balances() []LedgerBalance {
	l.mu.RLock()
	ids := make([]WorkerID, 0, len(l.entries))
	for id := range l.entries {
		ids = append(ids, id)
	}
	l.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]LedgerBalance, 0, len(ids))
	for _, id := range ids {
		e := l.entry(id)
		e.mu.Lock()
		out = append(out, LedgerBalance{WorkerID: id, Balance: e.balance, Postings: len(e.postings)})
		e.mu.Unlock()
	}
	return out
}

// Total returns the sum of all balances.
func (l *TipLedger) Total() Cents {
	var total Cents
	for _, b := range l.Balances() {
		total += b.Balance
	}
	return total
}
