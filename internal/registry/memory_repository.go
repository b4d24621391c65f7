package registry

import (
	"context"
	"sync"
)

// MemoryRepository is an in-memory implementation of Repository, used in
// tests and local development without a database.
type MemoryRepository struct {
	mu        sync.RWMutex
	providers map[string]Provider
	rules     []RoutingRule
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{providers: make(map[string]Provider)}
}

// ListProviders returns all stored provider records.
func (r *MemoryRepository) ListProviders(_ context.Context) ([]Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	return out, nil
}

// UpsertProvider stores a provider record.
func (r *MemoryRepository) UpsertProvider(_ context.Context, p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Code] = p
	return nil
}

// UpdateHealth stores the health fields of a provider record.
func (r *MemoryRepository) UpdateHealth(_ context.Context, p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.providers[p.Code]
	if !ok {
		return ErrProviderNotFound
	}
	stored.HealthScore = p.HealthScore
	stored.AvgLatencyMS = p.AvgLatencyMS
	stored.ConsecutiveFailures = p.ConsecutiveFailures
	r.providers[p.Code] = stored
	return nil
}

// ListRules returns all stored routing rules.
func (r *MemoryRepository) ListRules(_ context.Context) ([]RoutingRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoutingRule, len(r.rules))
	copy(out, r.rules)
	return out, nil
}

// SetRules replaces the stored routing rules.
func (r *MemoryRepository) SetRules(rules []RoutingRule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = rules
}
