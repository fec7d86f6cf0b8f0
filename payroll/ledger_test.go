package payroll_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Astoria-Consulting/mad-dogs/payroll"
)

func TestTipLedger_LazyEntries(t *testing.T) {
	ledger := payroll.NewTipLedger()

	_, ok := ledger.Balance("w-1")
	assert.False(t, ok, "untouched worker has no entry")

	ledger.Touch("w-1")
	b, ok := ledger.Balance("w-1")
	assert.True(t, ok)
	assert.Zero(t, b)

	ledger.Post("w-2", payroll.Posting{Kind: payroll.PostingDirectTip, Delta: 300})
	b, ok = ledger.Balance("w-2")
	assert.True(t, ok)
	assert.Equal(t, payroll.Cents(300), b)
}

func TestTipLedger_BalanceMatchesJournal(t *testing.T) {
	ledger := payroll.NewTipLedger()
	ledger.Post("w-1", payroll.Posting{Kind: payroll.PostingDirectTip, Delta: 500, PaymentID: "p-1"})
	ledger.Post("w-1", payroll.Posting{Kind: payroll.PostingTipoutDebit, Delta: -25, OrderID: "o-1", Category: "Liquor"})

	journal := ledger.Journal("w-1")
	require.Len(t, journal, 2)
	assert.Equal(t, payroll.PostingDirectTip, journal[0].Kind)
	assert.Equal(t, payroll.PostingTipoutDebit, journal[1].Kind)

	var sum payroll.Cents
	for _, p := range journal {
		sum += p.Delta
	}
	b, _ := ledger.Balance("w-1")
	assert.Equal(t, sum, b)
	assert.Equal(t, payroll.Cents(475), b)
}

func TestTipLedger_ConcurrentPostsAreNotLost(t *testing.T) {
	// GIVEN: Many goroutines posting to a handful of shared workers
	ledger := payroll.NewTipLedger()
	workers := []payroll.WorkerID{"a", "b", "c"}
	const goroutines, perGoroutine = 32, 200

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				from := workers[(g+i)%len(workers)]
				to := workers[(g+i+1)%len(workers)]
				ledger.Post(from, payroll.Posting{Kind: payroll.PostingTipoutDebit, Delta: -7})
				ledger.Post(to, payroll.Posting{Kind: payroll.PostingTipoutCredit, Delta: 7})
				ledger.Post("tips", payroll.Posting{Kind: payroll.PostingDirectTip, Delta: 1})
			}
		}(g)
	}
	wg.Wait()

	// THEN: Transfers net to zero and every direct credit landed
	tips, _ := ledger.Balance("tips")
	assert.Equal(t, payroll.Cents(goroutines*perGoroutine), tips)
	assert.Equal(t, payroll.Cents(goroutines*perGoroutine), ledger.Total())
	assert.Len(t, ledger.Journal("tips"), goroutines*perGoroutine)
}

func TestTipLedger_BalancesSortedByWorker(t *testing.T) {
	ledger := payroll.NewTipLedger()
	ledger.Touch("zed")
	ledger.Post("amy", payroll.Posting{Delta: 10})
	ledger.Touch("kim")

	got := ledger.Balances()

	require.Len(t, got, 3)
	assert.Equal(t, payroll.WorkerID("amy"), got[0].WorkerID)
	assert.Equal(t, 1, got[0].Postings)
	assert.Equal(t, payroll.WorkerID("kim"), got[1].WorkerID)
	assert.Equal(t, payroll.WorkerID("zed"), got[2].WorkerID)
}
