package payroll

import (
	"context"
	"sync"
)

// =============================================================================
// PROCESSED ORDERS - At-most-once application per order
// =============================================================================

// Claims is an atomic test-and-set over string keys. Claim returns true only
// for the first caller of a key; every later caller gets false.
type Claims interface {
	Claim(ctx context.Context, key string) (bool, error)
}

// ProcessedSet is the in-memory Claims used for a single-process run.
type ProcessedSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewProcessedSet() *ProcessedSet {
	return &ProcessedSet{seen: make(map[string]struct{})}
}

func (s *ProcessedSet) Claim(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = struct{}{}
	return true, nil
}

// Len returns the number of claimed keys.
func (s *ProcessedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func orderKey(id OrderID) string     { return "order:" + string(id) }
func paymentKey(id PaymentID) string { return "payment:" + string(id) }
