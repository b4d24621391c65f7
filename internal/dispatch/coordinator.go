// Package dispatch runs the selected supplier adapters concurrently and
// collects whatever normalized results arrive before the deadline.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/tripweave/tripweave/internal/adapter"
	"github.com/tripweave/tripweave/internal/provider/resilience"
	"github.com/tripweave/tripweave/internal/search"
)

// Dispatch defaults. The per-call timeout is deliberately shorter than the
// booking-flow timeout used elsewhere in the app; search calls that take
// longer than this are not worth waiting for.
const (
	DefaultCallTimeout     = 6 * time.Second
	DefaultOverallTimeout  = 8 * time.Second
	DefaultMaxRetries      = 2
	DefaultInitialInterval = 150 * time.Millisecond
	DefaultMaxInterval     = 2 * time.Second
)

// CallMeta records the execution metadata of one provider call.
type CallMeta struct {
	// Provider is the provider code.
	Provider string `json:"provider"`

	// LatencyMS is the wall time of the call including retries.
	LatencyMS int64 `json:"responseTimeMs"`

	// ResultCount is the number of normalized results obtained.
	ResultCount int `json:"resultCount"`

	// Error is the terminal error message, empty on success.
	Error string `json:"error,omitempty"`

	// Skipped is true when the call never left the coordinator because
	// the provider's circuit breaker was open.
	Skipped bool `json:"skipped,omitempty"`

	// Success is true when the call produced a usable response.
	Success bool `json:"success"`
}

// Config holds configuration for the coordinator.
type Config struct {
	Adapters *adapter.Set
	Breakers *resilience.BreakerSet
	Logger   zerolog.Logger

	// CallTimeout bounds each individual provider call (default 6s).
	CallTimeout time.Duration

	// OverallTimeout bounds the whole fan-out (default 8s).
	OverallTimeout time.Duration

	// MaxRetries is the transient-failure retry budget per provider
	// (default 2).
	MaxRetries uint64

	// InitialInterval and MaxInterval shape the retry backoff.
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Coordinator fans a search request out to the selected adapters.
type Coordinator struct {
	adapters        *adapter.Set
	breakers        *resilience.BreakerSet
	logger          zerolog.Logger
	callTimeout     time.Duration
	overallTimeout  time.Duration
	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewCoordinator creates an execution coordinator.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.OverallTimeout == 0 {
		cfg.OverallTimeout = DefaultOverallTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = DefaultInitialInterval
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = DefaultMaxInterval
	}

	return &Coordinator{
		adapters:        cfg.Adapters,
		breakers:        cfg.Breakers,
		logger:          cfg.Logger,
		callTimeout:     cfg.CallTimeout,
		overallTimeout:  cfg.OverallTimeout,
		maxRetries:      cfg.MaxRetries,
		initialInterval: cfg.InitialInterval,
		maxInterval:     cfg.MaxInterval,
	}
}

type callResult struct {
	results []search.Result
	meta    CallMeta
}

// Dispatch invokes every listed provider concurrently and returns the
// per-provider result lists that arrived before the overall deadline plus
// execution metadata for each provider. A provider that fails or times out
// contributes zero results but never fails the dispatch; its late response,
// if any, is discarded.
func (c *Coordinator) Dispatch(ctx context.Context, providers []string, req *search.Request) ([][]search.Result, []CallMeta) {
	ctx, cancel := context.WithTimeout(ctx, c.overallTimeout)
	defer cancel()

	// Buffered so abandoned calls never block on send.
	resultCh := make(chan callResult, len(providers))
	dispatched := 0

	for _, code := range providers {
		a, ok := c.adapters.Get(code)
		if !ok {
			c.logger.Error().Str("provider", code).Msg("selected provider has no adapter")
			continue
		}

		// An open breaker costs zero calls and zero latency.
		if c.breakers.Open(code) {
			resultCh <- callResult{meta: CallMeta{Provider: code, Skipped: true, Error: resilience.ErrCircuitOpen.Error()}}
			dispatched++
			continue
		}

		dispatched++
		go func(code string, a adapter.Adapter) {
			resultCh <- c.call(ctx, code, a, req)
		}(code, a)
	}

	resultsByProvider := make([][]search.Result, 0, dispatched)
	meta := make([]CallMeta, 0, dispatched)

	for i := 0; i < dispatched; i++ {
		select {
		case r := <-resultCh:
			meta = append(meta, r.meta)
			if len(r.results) > 0 {
				resultsByProvider = append(resultsByProvider, r.results)
			}
		case <-ctx.Done():
			// Deadline elapsed: proceed with what completed. Outstanding
			// calls are context-bound and their results are discarded.
			return resultsByProvider, meta
		}
	}

	return resultsByProvider, meta
}

// call executes one provider call through its circuit breaker with
// retry-with-backoff on transient failures. Retries stop immediately if the
// breaker trips mid-request or the error is not transient.
func (c *Coordinator) call(ctx context.Context, code string, a adapter.Adapter, req *search.Request) callResult {
	start := time.Now()
	breaker := c.breakers.For(code)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialInterval
	bo.MaxInterval = c.maxInterval
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx)

	var results []search.Result

	operation := func() error {
		out, err := breaker.Execute(func() ([]search.Result, error) {
			callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
			defer cancel()
			return a.Search(callCtx, req)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(resilience.ErrCircuitOpen)
			}
			// Credential misconfiguration cannot be fixed by retrying.
			if errors.Is(err, search.ErrProviderAuth) {
				return backoff.Permanent(err)
			}
			if errors.Is(err, adapter.ErrCategoryNotSupported) {
				return backoff.Permanent(err)
			}
			return err
		}
		results = out
		return nil
	}

	err := backoff.Retry(operation, policy)
	latency := time.Since(start)

	m := CallMeta{
		Provider:    code,
		LatencyMS:   latency.Milliseconds(),
		ResultCount: len(results),
		Success:     err == nil,
	}

	if err != nil {
		m.Error = err.Error()
		c.logger.Warn().
			Str("provider", code).
			Dur("latency", latency).
			Err(err).
			Msg("provider call failed")
		return callResult{meta: m}
	}

	c.logger.Debug().
		Str("provider", code).
		Dur("latency", latency).
		Int("results", len(results)).
		Msg("provider call completed")

	return callResult{results: results, meta: m}
}
