package budget

import (
	"context"
	"sync"
)

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewMemoryRepository creates an empty in-memory budget repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{counters: make(map[string]int64)}
}

// LoadCounters returns the stored counts for the given windows.
func (r *MemoryRepository) LoadCounters(_ context.Context, day, month string) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters["day:"+day], r.counters["month:"+month], nil
}

// SaveCounters stores the counts for the given windows.
func (r *MemoryRepository) SaveCounters(_ context.Context, day, month string, daily, monthly int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters["day:"+day] = daily
	r.counters["month:"+month] = monthly
	return nil
}
