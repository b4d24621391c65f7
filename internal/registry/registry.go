package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/tripweave/tripweave/internal/search"
)

// Health score tuning. Successes recover the score slowly, failures cut it
// sharply, and slow responses bleed a small penalty even on success.
const (
	healthMax            = 100.0
	healthMin            = 0.0
	healthSuccessReward  = 5.0
	healthFailurePenalty = 15.0
	healthSlowThreshold  = 2 * time.Second
	healthSlowPenalty    = 2.0
	latencySmoothing     = 0.2
)

// Registry is the in-memory provider catalog. Reads happen on every search
// from many goroutines; health writes come from the resilience layer after
// each call. Each provider record has its own lock so a health write to one
// provider never blocks reads of another.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu       sync.RWMutex
	provider Provider
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// NewWithProviders creates a registry preloaded with the given providers.
func NewWithProviders(providers []Provider) *Registry {
	r := New()
	for _, p := range providers {
		r.Upsert(p)
	}
	return r
}

// Upsert inserts or replaces a provider record. Health fields of an existing
// record are preserved unless the incoming record carries newer ones.
func (r *Registry) Upsert(p Provider) {
	r.mu.Lock()
	e, ok := r.entries[p.Code]
	if !ok {
		if p.HealthScore == 0 && p.ConsecutiveFailures == 0 {
			p.HealthScore = healthMax
		}
		r.entries[p.Code] = &entry{provider: p}
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	// Keep live health state across config reloads.
	p.HealthScore = e.provider.HealthScore
	p.AvgLatencyMS = e.provider.AvgLatencyMS
	p.ConsecutiveFailures = e.provider.ConsecutiveFailures
	p.UpdatedAt = e.provider.UpdatedAt
	e.provider = p
}

// Get returns a copy of the provider record.
func (r *Registry) Get(code string) (Provider, error) {
	r.mu.RLock()
	e, ok := r.entries[code]
	r.mu.RUnlock()
	if !ok {
		return Provider{}, ErrProviderNotFound
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.provider, nil
}

// List returns copies of all provider records sorted by code.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	providers := make([]Provider, 0, len(entries))
	for _, e := range entries {
		e.mu.RLock()
		providers = append(providers, e.provider)
		e.mu.RUnlock()
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].Code < providers[j].Code })
	return providers
}

// Candidates returns enabled providers capable of serving the category.
func (r *Registry) Candidates(category search.Category) []Provider {
	var out []Provider
	for _, p := range r.List() {
		if p.Enabled && p.SupportsCategory(category) {
			out = append(out, p)
		}
	}
	return out
}

// RecordOutcome applies one call outcome to the provider's rolling health
// score, latency average and consecutive failure counter. Writes touch only
// the single provider's record.
func (r *Registry) RecordOutcome(o Outcome) {
	r.mu.RLock()
	e, ok := r.entries[o.Provider]
	r.mu.RUnlock()
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p := &e.provider
	latencyMS := float64(o.Latency.Milliseconds())
	if p.AvgLatencyMS == 0 {
		p.AvgLatencyMS = latencyMS
	} else {
		p.AvgLatencyMS = p.AvgLatencyMS*(1-latencySmoothing) + latencyMS*latencySmoothing
	}

	if o.Success {
		p.ConsecutiveFailures = 0
		p.HealthScore += healthSuccessReward
		if o.Latency > healthSlowThreshold {
			p.HealthScore -= healthSlowPenalty
		}
	} else {
		p.ConsecutiveFailures++
		p.HealthScore -= healthFailurePenalty
	}

	if p.HealthScore > healthMax {
		p.HealthScore = healthMax
	}
	if p.HealthScore < healthMin {
		p.HealthScore = healthMin
	}
	p.UpdatedAt = time.Now()
}

// SetEnabled toggles a provider without dropping its health state.
func (r *Registry) SetEnabled(code string, enabled bool) error {
	r.mu.RLock()
	e, ok := r.entries[code]
	r.mu.RUnlock()
	if !ok {
		return ErrProviderNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.provider.Enabled = enabled
	e.provider.UpdatedAt = time.Now()
	return nil
}

// Count returns the number of registered providers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
