package dispatch_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripweave/tripweave/internal/adapter"
	"github.com/tripweave/tripweave/internal/dispatch"
	"github.com/tripweave/tripweave/internal/provider/resilience"
	"github.com/tripweave/tripweave/internal/search"
)

// fakeAdapter is a scriptable Adapter for coordinator tests.
type fakeAdapter struct {
	name    string
	results []search.Result
	err     error
	delay   time.Duration
	calls   atomic.Int64
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Search(ctx context.Context, _ *search.Request) ([]search.Result, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeAdapter) HealthCheck(context.Context) bool { return f.err == nil }

func result(provider, ref string, amount float64) search.Result {
	return search.Result{
		ID:          provider + "-" + ref,
		Provider:    provider,
		SupplierRef: ref,
		Category:    search.CategoryFlights,
		Price:       search.NewPrice(amount, "USD"),
	}
}

func testRequest() *search.Request {
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

func newCoordinator(cfg dispatch.Config, adapters ...adapter.Adapter) (*dispatch.Coordinator, *resilience.BreakerSet) {
	breakers := resilience.NewBreakerSet(resilience.BreakerConfig{}, zerolog.Nop())
	cfg.Adapters = adapter.NewSet(adapters...)
	cfg.Breakers = breakers
	cfg.Logger = zerolog.Nop()
	return dispatch.NewCoordinator(cfg), breakers
}

func TestDispatch_CollectsFromAllProviders(t *testing.T) {
	a := &fakeAdapter{name: "alpha", results: []search.Result{result("alpha", "1", 400)}}
	b := &fakeAdapter{name: "beta", results: []search.Result{result("beta", "1", 300), result("beta", "2", 500)}}

	c, _ := newCoordinator(dispatch.Config{}, a, b)

	lists, meta := c.Dispatch(context.Background(), []string{"alpha", "beta"}, testRequest())

	require.Len(t, lists, 2)
	require.Len(t, meta, 2)
	for _, m := range meta {
		assert.True(t, m.Success)
		assert.Empty(t, m.Error)
	}
}

func TestDispatch_FailingProviderDoesNotFailSearch(t *testing.T) {
	ok := &fakeAdapter{name: "alpha", results: []search.Result{result("alpha", "1", 400)}}
	bad := &fakeAdapter{name: "beta", err: errors.New("upstream exploded")}

	c, _ := newCoordinator(dispatch.Config{
		MaxRetries:      1,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}, ok, bad)

	lists, meta := c.Dispatch(context.Background(), []string{"alpha", "beta"}, testRequest())

	require.Len(t, lists, 1)
	require.Len(t, meta, 2)

	byProvider := make(map[string]dispatch.CallMeta, len(meta))
	for _, m := range meta {
		byProvider[m.Provider] = m
	}
	assert.True(t, byProvider["alpha"].Success)
	assert.False(t, byProvider["beta"].Success)
	assert.Contains(t, byProvider["beta"].Error, "upstream exploded")
}

func TestDispatch_RetriesTransientFailures(t *testing.T) {
	bad := &fakeAdapter{name: "beta", err: errors.New("transient")}

	c, _ := newCoordinator(dispatch.Config{
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}, bad)

	_, meta := c.Dispatch(context.Background(), []string{"beta"}, testRequest())

	require.Len(t, meta, 1)
	assert.False(t, meta[0].Success)
	// initial attempt plus two retries
	assert.Equal(t, int64(3), bad.calls.Load())
}

func TestDispatch_AuthFailureIsNotRetried(t *testing.T) {
	bad := &fakeAdapter{name: "beta", err: search.ErrProviderAuth}

	c, _ := newCoordinator(dispatch.Config{
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}, bad)

	_, meta := c.Dispatch(context.Background(), []string{"beta"}, testRequest())

	require.Len(t, meta, 1)
	assert.False(t, meta[0].Success)
	assert.Equal(t, int64(1), bad.calls.Load())
}

func TestDispatch_SlowProviderDiscardedAtDeadline(t *testing.T) {
	fast := &fakeAdapter{name: "alpha", results: []search.Result{result("alpha", "1", 400)}}
	slow := &fakeAdapter{name: "beta", delay: 2 * time.Second, results: []search.Result{result("beta", "1", 100)}}

	c, _ := newCoordinator(dispatch.Config{
		CallTimeout:    100 * time.Millisecond,
		OverallTimeout: 150 * time.Millisecond,
		MaxRetries:     1,
	}, fast, slow)

	start := time.Now()
	lists, meta := c.Dispatch(context.Background(), []string{"alpha", "beta"}, testRequest())
	elapsed := time.Since(start)

	assert.Less(t, elapsed, time.Second)
	require.Len(t, lists, 1)
	assert.Equal(t, "alpha", lists[0][0].Provider)
	assert.NotEmpty(t, meta)
}

func TestDispatch_SlowButWithinDeadlineIsIncluded(t *testing.T) {
	slow := &fakeAdapter{name: "beta", delay: 50 * time.Millisecond, results: []search.Result{result("beta", "1", 100)}}

	c, _ := newCoordinator(dispatch.Config{
		CallTimeout:    500 * time.Millisecond,
		OverallTimeout: time.Second,
	}, slow)

	lists, meta := c.Dispatch(context.Background(), []string{"beta"}, testRequest())

	require.Len(t, lists, 1)
	require.Len(t, meta, 1)
	assert.True(t, meta[0].Success)
	assert.GreaterOrEqual(t, meta[0].LatencyMS, int64(50))
}

func TestDispatch_OpenBreakerSkipsCall(t *testing.T) {
	bad := &fakeAdapter{name: "beta", err: errors.New("down")}

	c, breakers := newCoordinator(dispatch.Config{
		MaxRetries:      1,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}, bad)

	// Trip the breaker with consecutive failures.
	req := testRequest()
	for i := 0; i < 3; i++ {
		c.Dispatch(context.Background(), []string{"beta"}, req)
	}
	require.True(t, breakers.Open("beta"))

	callsBefore := bad.calls.Load()
	_, meta := c.Dispatch(context.Background(), []string{"beta"}, req)

	require.Len(t, meta, 1)
	assert.True(t, meta[0].Skipped)
	assert.False(t, meta[0].Success)
	assert.Equal(t, callsBefore, bad.calls.Load())
}

func TestDispatch_UnknownProviderIgnored(t *testing.T) {
	ok := &fakeAdapter{name: "alpha", results: []search.Result{result("alpha", "1", 400)}}

	c, _ := newCoordinator(dispatch.Config{}, ok)

	lists, meta := c.Dispatch(context.Background(), []string{"alpha", "ghost"}, testRequest())

	require.Len(t, lists, 1)
	assert.Len(t, meta, 1)
}
