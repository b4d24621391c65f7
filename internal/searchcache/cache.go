// Package searchcache provides the in-memory TTL cache that short-circuits
// the aggregation pipeline on repeated searches, with request collapsing so
// concurrent identical searches trigger a single fan-out.
package searchcache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripweave/tripweave/internal/search"
)

// TTL defaults. Search results go stale quickly; single-offer detail
// records live longer so a caller tapping into a result does not re-trigger
// a supplier call.
var defaultSearchTTL = map[search.Category]time.Duration{
	search.CategoryFlights:     2 * time.Minute,
	search.CategoryHotels:      5 * time.Minute,
	search.CategoryCars:        5 * time.Minute,
	search.CategoryExperiences: 10 * time.Minute,
	search.CategoryPackages:    5 * time.Minute,
}

const (
	// DefaultDetailTTL is the lifetime of cached single-offer records.
	DefaultDetailTTL = 30 * time.Minute

	defaultCleanupInterval = 5 * time.Minute
)

// Entry is a cached merged result set. FallbackReason is set on synthetic
// entries so collapsed waiters learn why the generator ran; such entries are
// never stored.
type Entry struct {
	Results        []search.Result
	PriceRange     search.PriceRange
	FetchedAt      time.Time
	FallbackReason string
}

type cachedEntry struct {
	entry     Entry
	expiresAt time.Time
}

type cachedDetail struct {
	result    search.Result
	expiresAt time.Time
}

type inflight struct {
	done  chan struct{}
	entry *Entry
	err   error
}

// Config holds configuration for the cache.
type Config struct {
	Logger zerolog.Logger

	// SearchTTL overrides the per-category search TTLs.
	SearchTTL map[search.Category]time.Duration

	// DetailTTL overrides the single-offer detail TTL.
	DetailTTL time.Duration

	// CleanupInterval is how often expired entries are swept.
	CleanupInterval time.Duration
}

// Cache is the engine's response cache.
type Cache struct {
	logger          zerolog.Logger
	searchTTL       map[search.Category]time.Duration
	detailTTL       time.Duration
	cleanupInterval time.Duration

	mu          sync.RWMutex
	entries     map[string]*cachedEntry
	details     map[string]*cachedDetail
	inflight    map[string]*inflight
	lastCleanup time.Time
}

// New creates a cache.
func New(cfg Config) *Cache {
	searchTTL := make(map[search.Category]time.Duration, len(defaultSearchTTL))
	for cat, ttl := range defaultSearchTTL {
		searchTTL[cat] = ttl
	}
	for cat, ttl := range cfg.SearchTTL {
		searchTTL[cat] = ttl
	}

	detailTTL := cfg.DetailTTL
	if detailTTL == 0 {
		detailTTL = DefaultDetailTTL
	}
	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = defaultCleanupInterval
	}

	return &Cache{
		logger:          cfg.Logger,
		searchTTL:       searchTTL,
		detailTTL:       detailTTL,
		cleanupInterval: cleanupInterval,
		entries:         make(map[string]*cachedEntry),
		details:         make(map[string]*cachedDetail),
		inflight:        make(map[string]*inflight),
	}
}

// GetOrFetch returns the cached entry for the key if fresh, otherwise runs
// fetch and caches its result. Concurrent calls for the same key collapse
// into one fetch; waiters receive the winner's outcome. The boolean reports
// whether the value came from cache.
func (c *Cache) GetOrFetch(ctx context.Context, key string, category search.Category, fetch func() (*Entry, error)) (*Entry, bool, error) {
	c.mu.Lock()

	if cached, ok := c.entries[key]; ok && time.Now().Before(cached.expiresAt) {
		c.mu.Unlock()
		return &cached.entry, true, nil
	}

	if fl, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-fl.done:
			return fl.entry, false, fl.err
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}

	fl := &inflight{done: make(chan struct{})}
	c.inflight[key] = fl
	c.mu.Unlock()

	entry, err := fetch()

	c.mu.Lock()
	fl.entry = entry
	fl.err = err
	if err == nil && entry != nil && len(entry.Results) > 0 && !entry.Results[0].Demo {
		c.entries[key] = &cachedEntry{
			entry:     *entry,
			expiresAt: time.Now().Add(c.ttlFor(category)),
		}
	}
	delete(c.inflight, key)
	c.cleanupLocked()
	c.mu.Unlock()

	close(fl.done)
	return entry, false, err
}

// GetStale returns an expired entry if one is still held, for stale-if-error
// serving when every live provider fails.
func (c *Cache) GetStale(key string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cached, ok := c.entries[key]; ok {
		return &cached.entry, true
	}
	return nil, false
}

// PutDetails stores individual results under their IDs with the longer
// detail TTL so offer-detail lookups avoid a fresh supplier round trip.
func (c *Cache) PutDetails(results []search.Result) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range results {
		if r.ID == "" || r.Demo {
			continue
		}
		c.details[r.ID] = &cachedDetail{result: r, expiresAt: now.Add(c.detailTTL)}
	}
}

// GetDetail returns a cached single-offer record by result ID.
func (c *Cache) GetDetail(id string) (search.Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if d, ok := c.details[id]; ok && time.Now().Before(d.expiresAt) {
		return d.result, true
	}
	return search.Result{}, false
}

// Invalidate removes a specific key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes all cached entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*cachedEntry)
	c.details = make(map[string]*cachedDetail)
	c.mu.Unlock()
}

// Stats returns entry counts for observability.
func (c *Cache) Stats() (entries, details int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), len(c.details)
}

func (c *Cache) ttlFor(category search.Category) time.Duration {
	if ttl, ok := c.searchTTL[category]; ok {
		return ttl
	}
	return 2 * time.Minute
}

// cleanupLocked sweeps expired entries. Caller holds the write lock.
// Expired search entries are retained one extra TTL for stale-if-error.
func (c *Cache) cleanupLocked() {
	now := time.Now()
	if now.Sub(c.lastCleanup) < c.cleanupInterval {
		return
	}
	c.lastCleanup = now

	expired := 0
	for key, cached := range c.entries {
		if now.After(cached.expiresAt.Add(c.cleanupInterval)) {
			delete(c.entries, key)
			expired++
		}
	}
	for id, d := range c.details {
		if now.After(d.expiresAt) {
			delete(c.details, id)
			expired++
		}
	}

	if expired > 0 {
		c.logger.Debug().Int("expired_entries", expired).Msg("cleaned up expired cache entries")
	}
}
