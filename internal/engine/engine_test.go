package engine_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripweave/tripweave/internal/adapter"
	"github.com/tripweave/tripweave/internal/budget"
	"github.com/tripweave/tripweave/internal/dispatch"
	"github.com/tripweave/tripweave/internal/engine"
	"github.com/tripweave/tripweave/internal/fallback"
	"github.com/tripweave/tripweave/internal/provider/resilience"
	"github.com/tripweave/tripweave/internal/registry"
	"github.com/tripweave/tripweave/internal/search"
	"github.com/tripweave/tripweave/internal/searchcache"
	"github.com/tripweave/tripweave/internal/selection"
)

// fakeAdapter is a scriptable supplier adapter. The error can be swapped at
// runtime to simulate a supplier going down between searches, and a gate
// channel holds calls open so tests can overlap concurrent searches.
type fakeAdapter struct {
	name    string
	results []search.Result
	gate    chan struct{}
	calls   atomic.Int64

	mu  sync.Mutex
	err error
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Search(_ context.Context, _ *search.Request) ([]search.Result, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.results, nil
}

func (f *fakeAdapter) HealthCheck(context.Context) bool { return true }

func (f *fakeAdapter) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func liveResult(provider, ref string, amount float64) search.Result {
	return search.Result{
		ID:          provider + "-" + ref,
		Provider:    provider,
		SupplierRef: ref,
		Category:    search.CategoryFlights,
		Price:       search.NewPrice(amount, "USD"),
	}
}

func euProvider(code string) registry.Provider {
	return registry.Provider{
		Code:          code,
		Name:          code,
		Categories:    []search.Category{search.CategoryFlights},
		StrongRegions: []string{"EU"},
		Priority:      5,
		CostPerCall:   1.0,
		Enabled:       true,
		HealthScore:   100,
	}
}

func flightRequest() *search.Request {
	req := &search.Request{
		Category: search.CategoryFlights,
		Segments: []search.Segment{{
			Origin:      "JFK",
			Destination: "CDG",
			Date:        time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC),
		}},
		Travelers: search.Travelers{Adults: 1},
	}
	req.Normalize()
	return req
}

type testSetup struct {
	engine   *engine.Engine
	registry *registry.Registry
	tracker  *budget.Tracker
	cache    *searchcache.Cache
}

func buildEngine(t *testing.T, providers []registry.Provider, budgetCfg budget.Config, searchTTL time.Duration, adapters ...adapter.Adapter) *testSetup {
	t.Helper()
	log := zerolog.Nop()

	reg := registry.NewWithProviders(providers)
	rules := registry.NewRuleSet(nil)
	breakers := resilience.NewBreakerSet(resilience.BreakerConfig{}, log)

	cacheCfg := searchcache.Config{Logger: log}
	if searchTTL > 0 {
		cacheCfg.SearchTTL = map[search.Category]time.Duration{search.CategoryFlights: searchTTL}
	}
	cache := searchcache.New(cacheCfg)

	budgetCfg.Logger = log
	tracker, err := budget.NewTracker(context.Background(), budgetCfg)
	require.NoError(t, err)

	eng := engine.New(engine.Config{
		Registry: reg,
		Rules:    rules,
		Selector: selection.NewEngine(selection.Config{
			Registry: reg,
			Rules:    rules,
			Breakers: breakers,
			Logger:   log,
		}),
		Dispatcher: dispatch.NewCoordinator(dispatch.Config{
			Adapters:        adapter.NewSet(adapters...),
			Breakers:        breakers,
			Logger:          log,
			MaxRetries:      1,
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
		}),
		Cache:  cache,
		Budget: tracker,
		Logger: log,
	})

	return &testSetup{engine: eng, registry: reg, tracker: tracker, cache: cache}
}

func TestSearch_AggregatesLiveProviders(t *testing.T) {
	alpha := &fakeAdapter{name: "alpha", results: []search.Result{liveResult("alpha", "1", 900)}}
	beta := &fakeAdapter{name: "beta", results: []search.Result{liveResult("beta", "1", 750)}}

	s := buildEngine(t, []registry.Provider{euProvider("alpha"), euProvider("beta")}, budget.Config{}, 0, alpha, beta)

	out, err := s.engine.Search(context.Background(), flightRequest())
	require.NoError(t, err)

	require.Len(t, out.Results, 2)
	assert.Equal(t, 750.0, out.Results[0].Price.Amount)
	assert.Equal(t, 750.0, out.PriceRange.Min)
	assert.Equal(t, 900.0, out.PriceRange.Max)
	assert.Len(t, out.Providers, 2)
	assert.False(t, out.CacheHit)
	assert.False(t, out.Stale)
	assert.Equal(t, fallback.ReasonNone, out.FallbackReason)
}

func TestSearch_SecondIdenticalSearchHitsCache(t *testing.T) {
	alpha := &fakeAdapter{name: "alpha", results: []search.Result{liveResult("alpha", "1", 900)}}

	s := buildEngine(t, []registry.Provider{euProvider("alpha")}, budget.Config{}, 0, alpha)

	_, err := s.engine.Search(context.Background(), flightRequest())
	require.NoError(t, err)

	out, err := s.engine.Search(context.Background(), flightRequest())
	require.NoError(t, err)

	assert.True(t, out.CacheHit)
	assert.Empty(t, out.Providers)
	assert.Equal(t, int64(1), alpha.calls.Load())
}

func TestSearch_LimitShapesResponseNotCacheEntry(t *testing.T) {
	alpha := &fakeAdapter{name: "alpha", results: []search.Result{
		liveResult("alpha", "1", 900),
		liveResult("alpha", "2", 750),
		liveResult("alpha", "3", 820),
	}}

	s := buildEngine(t, []registry.Provider{euProvider("alpha")}, budget.Config{}, 0, alpha)

	limited := flightRequest()
	limited.Limit = 1
	out, err := s.engine.Search(context.Background(), limited)
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, 750.0, out.Results[0].Price.Amount)

	// An uncapped caller hits the same cache entry and still gets the full
	// list, not the first caller's truncation.
	out, err = s.engine.Search(context.Background(), flightRequest())
	require.NoError(t, err)
	assert.True(t, out.CacheHit)
	assert.Len(t, out.Results, 3)
	assert.Equal(t, int64(1), alpha.calls.Load())

	// And a capped caller after a full fetch gets its own cap applied.
	capped := flightRequest()
	capped.Limit = 2
	out, err = s.engine.Search(context.Background(), capped)
	require.NoError(t, err)
	assert.True(t, out.CacheHit)
	assert.Len(t, out.Results, 2)
}

func TestSearch_CollapsedSearchesShareFallbackReason(t *testing.T) {
	gate := make(chan struct{})
	alpha := &fakeAdapter{name: "alpha", err: errors.New("down"), gate: gate}

	s := buildEngine(t, []registry.Provider{euProvider("alpha")}, budget.Config{}, 0, alpha)

	type searchResult struct {
		out *engine.Outcome
		err error
	}
	outcomes := make(chan searchResult, 2)
	run := func() {
		out, err := s.engine.Search(context.Background(), flightRequest())
		outcomes <- searchResult{out, err}
	}

	go run()
	require.Eventually(t, func() bool { return alpha.calls.Load() > 0 }, time.Second, time.Millisecond)

	// Second identical search collapses onto the in-flight fetch.
	go run()
	time.Sleep(50 * time.Millisecond)
	close(gate)

	for i := 0; i < 2; i++ {
		r := <-outcomes
		require.NoError(t, r.err)
		assert.Equal(t, fallback.ReasonAllProvidersFailed, r.out.FallbackReason)
		require.NotEmpty(t, r.out.Results)
		assert.True(t, r.out.Results[0].Demo)
	}

	// One fan-out (two attempts with a single retry) served both searches.
	assert.Equal(t, int64(2), alpha.calls.Load())
}

func TestSearch_AllProvidersFailedServesSynthetic(t *testing.T) {
	alpha := &fakeAdapter{name: "alpha", err: errors.New("down")}

	s := buildEngine(t, []registry.Provider{euProvider("alpha")}, budget.Config{}, 0, alpha)

	out, err := s.engine.Search(context.Background(), flightRequest())
	require.NoError(t, err)

	assert.Equal(t, fallback.ReasonAllProvidersFailed, out.FallbackReason)
	require.NotEmpty(t, out.Results)
	for _, r := range out.Results {
		assert.True(t, r.Demo)
	}
	assert.NotEmpty(t, out.Providers)
}

func TestSearch_NoEligibleProvidersServesSynthetic(t *testing.T) {
	s := buildEngine(t, nil, budget.Config{}, 0)

	out, err := s.engine.Search(context.Background(), flightRequest())
	require.NoError(t, err)

	assert.Equal(t, fallback.ReasonNoEligibleProviders, out.FallbackReason)
	require.NotEmpty(t, out.Results)
	assert.True(t, out.Results[0].Demo)
}

func TestSearch_SyntheticResultsAreNotCached(t *testing.T) {
	alpha := &fakeAdapter{name: "alpha", err: errors.New("down")}

	s := buildEngine(t, []registry.Provider{euProvider("alpha")}, budget.Config{}, 0, alpha)

	_, err := s.engine.Search(context.Background(), flightRequest())
	require.NoError(t, err)

	// Supplier recovers; the next search must go live again.
	alpha.setErr(nil)
	alpha.results = []search.Result{liveResult("alpha", "1", 900)}

	out, err := s.engine.Search(context.Background(), flightRequest())
	require.NoError(t, err)

	assert.False(t, out.CacheHit)
	assert.Equal(t, fallback.ReasonNone, out.FallbackReason)
	assert.False(t, out.Results[0].Demo)
}

func TestSearch_StaleServedWhenAllProvidersFail(t *testing.T) {
	alpha := &fakeAdapter{name: "alpha", results: []search.Result{liveResult("alpha", "1", 900)}}

	s := buildEngine(t, []registry.Provider{euProvider("alpha")}, budget.Config{}, 10*time.Millisecond, alpha)

	_, err := s.engine.Search(context.Background(), flightRequest())
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	alpha.setErr(errors.New("down"))

	out, err := s.engine.Search(context.Background(), flightRequest())
	require.NoError(t, err)

	assert.True(t, out.Stale)
	assert.Equal(t, fallback.ReasonNone, out.FallbackReason)
	require.NotEmpty(t, out.Results)
	assert.Equal(t, 900.0, out.Results[0].Price.Amount)
}

func TestSearch_ExhaustedBudgetBlocksLiveDispatch(t *testing.T) {
	alpha := &fakeAdapter{name: "alpha", results: []search.Result{liveResult("alpha", "1", 900)}}

	s := buildEngine(t, []registry.Provider{euProvider("alpha")}, budget.Config{DailyLimit: 1}, 0, alpha)
	s.tracker.Record(1)

	out, err := s.engine.Search(context.Background(), flightRequest())
	require.NoError(t, err)

	assert.Equal(t, fallback.ReasonNoEligibleProviders, out.FallbackReason)
	assert.True(t, out.BudgetWarning)
	assert.Zero(t, alpha.calls.Load())
}

func TestSearch_RecordsBudgetCalls(t *testing.T) {
	alpha := &fakeAdapter{name: "alpha", results: []search.Result{liveResult("alpha", "1", 900)}}
	beta := &fakeAdapter{name: "beta", results: []search.Result{liveResult("beta", "1", 750)}}

	s := buildEngine(t, []registry.Provider{euProvider("alpha"), euProvider("beta")}, budget.Config{DailyLimit: 100}, 0, alpha, beta)

	_, err := s.engine.Search(context.Background(), flightRequest())
	require.NoError(t, err)

	assert.Equal(t, int64(2), s.tracker.Snapshot().DailyCalls)
}

func TestSearch_UpdatesProviderHealth(t *testing.T) {
	alpha := &fakeAdapter{name: "alpha", err: errors.New("down")}

	s := buildEngine(t, []registry.Provider{euProvider("alpha")}, budget.Config{}, 0, alpha)

	_, err := s.engine.Search(context.Background(), flightRequest())
	require.NoError(t, err)

	// Health recording runs off the request path.
	require.Eventually(t, func() bool {
		p, getErr := s.registry.Get("alpha")
		return getErr == nil && p.HealthScore < 100
	}, time.Second, 10*time.Millisecond)
}

type fakeRepo struct {
	mu        sync.Mutex
	providers []registry.Provider
	rules     []registry.RoutingRule
	health    map[string]registry.Provider
}

func (r *fakeRepo) ListProviders(context.Context) ([]registry.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]registry.Provider(nil), r.providers...), nil
}

func (r *fakeRepo) UpsertProvider(_ context.Context, p registry.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
	return nil
}

func (r *fakeRepo) UpdateHealth(_ context.Context, p registry.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.health == nil {
		r.health = make(map[string]registry.Provider)
	}
	r.health[p.Code] = p
	return nil
}

func (r *fakeRepo) ListRules(context.Context) ([]registry.RoutingRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]registry.RoutingRule(nil), r.rules...), nil
}

func TestRefresh_ReloadsProvidersAndRules(t *testing.T) {
	log := zerolog.Nop()
	reg := registry.NewWithProviders([]registry.Provider{euProvider("alpha")})
	rules := registry.NewRuleSet(nil)

	repo := &fakeRepo{
		providers: []registry.Provider{euProvider("alpha"), euProvider("beta")},
		rules: []registry.RoutingRule{
			{ID: "r1", Category: search.CategoryFlights, Provider: "beta", Boost: 5},
		},
	}

	tracker, err := budget.NewTracker(context.Background(), budget.Config{Logger: log})
	require.NoError(t, err)

	eng := engine.New(engine.Config{
		Registry:   reg,
		Rules:      rules,
		Repository: repo,
		Cache:      searchcache.New(searchcache.Config{Logger: log}),
		Budget:     tracker,
		Logger:     log,
	})

	// Degrade alpha first; refresh must not reset its live health.
	reg.RecordOutcome(registry.Outcome{Provider: "alpha", Success: false, Latency: 100 * time.Millisecond})

	require.NoError(t, eng.Refresh(context.Background()))

	_, err = reg.Get("beta")
	assert.NoError(t, err)

	alpha, err := reg.Get("alpha")
	require.NoError(t, err)
	assert.Less(t, alpha.HealthScore, 100.0)

	boosts := rules.BoostsFor(search.CategoryFlights, "EU")
	assert.Equal(t, 5.0, boosts["beta"])
}

func TestOffer_ReturnsCachedDetail(t *testing.T) {
	alpha := &fakeAdapter{name: "alpha", results: []search.Result{liveResult("alpha", "1", 900)}}

	s := buildEngine(t, []registry.Provider{euProvider("alpha")}, budget.Config{}, 0, alpha)

	out, err := s.engine.Search(context.Background(), flightRequest())
	require.NoError(t, err)
	require.NotEmpty(t, out.Results)

	got, ok := s.engine.Offer(out.Results[0].ID)
	require.True(t, ok)
	assert.Equal(t, 900.0, got.Price.Amount)

	_, ok = s.engine.Offer("missing")
	assert.False(t, ok)
}
