// Package engine wires selection, dispatch, aggregation, caching, budget
// control and fallback into the search pipeline behind the API.
package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tripweave/tripweave/internal/aggregate"
	"github.com/tripweave/tripweave/internal/budget"
	"github.com/tripweave/tripweave/internal/dispatch"
	"github.com/tripweave/tripweave/internal/fallback"
	"github.com/tripweave/tripweave/internal/registry"
	"github.com/tripweave/tripweave/internal/search"
	"github.com/tripweave/tripweave/internal/searchcache"
	"github.com/tripweave/tripweave/internal/selection"
)

const tracerName = "github.com/tripweave/tripweave/internal/engine"

// Outcome is the assembled search response data plus execution metadata.
type Outcome struct {
	Results    []search.Result
	PriceRange search.PriceRange

	// Providers holds per-provider execution metadata; empty on cache hits.
	Providers []dispatch.CallMeta

	CacheHit       bool
	Stale          bool
	FallbackReason fallback.Reason
	BudgetWarning  bool
	Rescued        bool
	DurationMS     int64
}

// Config holds the engine's collaborators.
type Config struct {
	Registry   *registry.Registry
	Rules      *registry.RuleSet
	Repository registry.Repository
	Selector   *selection.Engine
	Dispatcher *dispatch.Coordinator
	Cache      *searchcache.Cache
	Budget     *budget.Tracker
	Logger     zerolog.Logger
}

// Engine executes search requests end to end.
type Engine struct {
	registry   *registry.Registry
	rules      *registry.RuleSet
	repo       registry.Repository
	selector   *selection.Engine
	dispatcher *dispatch.Coordinator
	cache      *searchcache.Cache
	budget     *budget.Tracker
	logger     zerolog.Logger
}

// New creates a search engine.
func New(cfg Config) *Engine {
	return &Engine{
		registry:   cfg.Registry,
		rules:      cfg.Rules,
		repo:       cfg.Repository,
		selector:   cfg.Selector,
		dispatcher: cfg.Dispatcher,
		cache:      cfg.Cache,
		budget:     cfg.Budget,
		logger:     cfg.Logger,
	}
}

// Search runs the full pipeline for a validated request. It never returns an
// error for supplier-side failures; the response degrades through cached,
// stale and finally synthetic results instead.
func (e *Engine) Search(ctx context.Context, req *search.Request) (*Outcome, error) {
	start := time.Now()
	req.Normalize()
	key := req.CacheKey()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "engine.search")
	defer span.End()
	span.SetAttributes(
		attribute.String("search.category", string(req.Category)),
		attribute.String("search.cache_key", key),
	)

	out := &Outcome{}

	entry, hit, err := e.cache.GetOrFetch(ctx, key, req.Category, func() (*searchcache.Entry, error) {
		return e.fetch(ctx, key, req, out)
	})
	if err != nil {
		return nil, err
	}

	out.Results = entry.Results
	out.PriceRange = entry.PriceRange
	out.CacheHit = hit

	// Collapsed waiters share the fetch owner's entry but not its Outcome,
	// so the fallback reason travels on the entry itself.
	if out.FallbackReason == fallback.ReasonNone {
		out.FallbackReason = fallback.Reason(entry.FallbackReason)
	}

	// The limit shapes one caller's response, never the shared cache entry.
	if req.Limit > 0 && len(out.Results) > req.Limit {
		out.Results = out.Results[:req.Limit]
	}

	out.BudgetWarning = e.budget.Warning()
	out.DurationMS = time.Since(start).Milliseconds()

	span.SetAttributes(
		attribute.Bool("search.cache_hit", out.CacheHit),
		attribute.Bool("search.stale", out.Stale),
		attribute.String("search.fallback", string(out.FallbackReason)),
		attribute.Int("search.results", len(out.Results)),
	)

	e.logger.Info().
		Str("category", string(req.Category)).
		Str("cache_key", key).
		Bool("cache_hit", out.CacheHit).
		Bool("stale", out.Stale).
		Str("fallback", string(out.FallbackReason)).
		Int("results", len(out.Results)).
		Int64("duration_ms", out.DurationMS).
		Msg("search completed")

	return out, nil
}

// fetch runs the live pipeline: select, dispatch, aggregate, then degrade
// through stale cache and synthetic fallback if nothing usable came back.
func (e *Engine) fetch(ctx context.Context, key string, req *search.Request, out *Outcome) (*searchcache.Entry, error) {
	// A fully exhausted budget blocks live supplier calls entirely.
	if e.budget.Exhausted() {
		e.logger.Warn().Str("category", string(req.Category)).Msg("call budget exhausted, skipping live dispatch")
		if stale, ok := e.cache.GetStale(key); ok {
			out.Stale = true
			return stale, nil
		}
		out.FallbackReason = fallback.ReasonNoEligibleProviders
		return e.synthetic(req, fallback.ReasonNoEligibleProviders), nil
	}

	_, selectSpan := otel.Tracer(tracerName).Start(ctx, "engine.select")
	plan := e.selector.Select(req, e.budget.CheapOnly())
	selectSpan.SetAttributes(attribute.Int("selection.providers", len(plan.Providers)))
	selectSpan.End()
	out.Rescued = plan.Rescued

	if len(plan.Providers) == 0 {
		if stale, ok := e.cache.GetStale(key); ok {
			out.Stale = true
			return stale, nil
		}
		out.FallbackReason = fallback.ReasonNoEligibleProviders
		return e.synthetic(req, fallback.ReasonNoEligibleProviders), nil
	}

	dispatchCtx, dispatchSpan := otel.Tracer(tracerName).Start(ctx, "engine.dispatch")
	lists, meta := e.dispatcher.Dispatch(dispatchCtx, plan.Providers, req)
	dispatchSpan.SetAttributes(attribute.Int("dispatch.providers", len(meta)))
	dispatchSpan.End()
	out.Providers = meta

	calls := 0
	for _, m := range meta {
		if !m.Skipped {
			calls++
		}
	}
	e.budget.Record(calls)

	// Health bookkeeping happens off the request path.
	go e.recordOutcomes(meta)

	results := aggregate.Merge(lists, req)
	if len(results) == 0 {
		if stale, ok := e.cache.GetStale(key); ok {
			out.Stale = true
			return stale, nil
		}
		out.FallbackReason = fallback.ReasonAllProvidersFailed
		return e.synthetic(req, fallback.ReasonAllProvidersFailed), nil
	}

	e.cache.PutDetails(results)

	return &searchcache.Entry{
		Results:    results,
		PriceRange: aggregate.Summarize(results),
		FetchedAt:  time.Now(),
	}, nil
}

func (e *Engine) synthetic(req *search.Request, reason fallback.Reason) *searchcache.Entry {
	results := fallback.Generate(req)
	return &searchcache.Entry{
		Results:        results,
		PriceRange:     aggregate.Summarize(results),
		FetchedAt:      time.Now(),
		FallbackReason: string(reason),
	}
}

// recordOutcomes feeds call outcomes into provider health and persists the
// updated health fields. Persistence is last-write-wins and best-effort.
func (e *Engine) recordOutcomes(meta []dispatch.CallMeta) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, m := range meta {
		if m.Skipped {
			continue
		}
		e.registry.RecordOutcome(registry.Outcome{
			Provider: m.Provider,
			Success:  m.Success,
			Latency:  time.Duration(m.LatencyMS) * time.Millisecond,
		})

		if e.repo == nil {
			continue
		}
		p, err := e.registry.Get(m.Provider)
		if err != nil {
			continue
		}
		if err := e.repo.UpdateHealth(ctx, p); err != nil {
			e.logger.Error().Err(err).Str("provider", m.Provider).Msg("failed to persist provider health")
		}
	}
}

// Offer returns a previously returned result by its ID.
func (e *Engine) Offer(id string) (search.Result, bool) {
	return e.cache.GetDetail(id)
}

// Refresh reloads providers and routing rules from the repository into the
// live registry. Health state of known providers is preserved.
func (e *Engine) Refresh(ctx context.Context) error {
	if e.repo == nil {
		return nil
	}

	providers, err := e.repo.ListProviders(ctx)
	if err != nil {
		return err
	}
	for _, p := range providers {
		e.registry.Upsert(p)
	}

	routingRules, err := e.repo.ListRules(ctx)
	if err != nil {
		return err
	}
	e.rules.Replace(routingRules)

	e.logger.Info().
		Int("providers", len(providers)).
		Int("rules", len(routingRules)).
		Msg("registry refreshed")
	return nil
}
