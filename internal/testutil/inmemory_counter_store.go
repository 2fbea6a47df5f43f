package testutil

import (
	"context"
	"sync"
)

// InMemoryCounterStore implements counter.Store for service tests
type InMemoryCounterStore struct {
	mu     sync.Mutex
	series map[string]int64
}

// NewInMemoryCounterStore creates a new in-memory counter store
func NewInMemoryCounterStore() *InMemoryCounterStore {
	return &InMemoryCounterStore{series: make(map[string]int64)}
}

func (s *InMemoryCounterStore) NextNumber(ctx context.Context, series string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[series]++
	return s.series[series], nil
}

func (s *InMemoryCounterStore) Peek(ctx context.Context, series string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.series[series], nil
}

// SetLastIssued seeds a series at a given value
func (s *InMemoryCounterStore) SetLastIssued(series string, value int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[series] = value
}

// Clear resets all series between tests
func (s *InMemoryCounterStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series = make(map[string]int64)
}
