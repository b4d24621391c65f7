// Package worker provides background job processing for TripWeave.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripweave/tripweave/internal/adapter"
	"github.com/tripweave/tripweave/internal/budget"
	"github.com/tripweave/tripweave/internal/engine"
	"github.com/tripweave/tripweave/internal/registry"
	"github.com/tripweave/tripweave/internal/searchcache"
)

// JobConfig holds configuration for the job runner.
type JobConfig struct {
	Logger   zerolog.Logger
	Engine   *engine.Engine
	Cache    *searchcache.Cache
	Budget   *budget.Tracker
	Adapters *adapter.Set
	Registry *registry.Registry

	// Concurrency is the number of concurrent health check probes.
	// Default: 3
	Concurrency int

	// HealthCheckTimeout bounds each supplier probe.
	// Default: 10 seconds
	HealthCheckTimeout time.Duration
}

// JobRunner executes the operational background jobs triggered over Pub/Sub.
type JobRunner struct {
	logger      zerolog.Logger
	engine      *engine.Engine
	cache       *searchcache.Cache
	budget      *budget.Tracker
	adapters    *adapter.Set
	registry    *registry.Registry
	concurrency int
	timeout     time.Duration
}

// NewJobRunner creates a new job runner.
func NewJobRunner(cfg JobConfig) *JobRunner {
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 3
	}
	if cfg.HealthCheckTimeout == 0 {
		cfg.HealthCheckTimeout = 10 * time.Second
	}

	return &JobRunner{
		logger:      cfg.Logger,
		engine:      cfg.Engine,
		cache:       cfg.Cache,
		budget:      cfg.Budget,
		adapters:    cfg.Adapters,
		registry:    cfg.Registry,
		concurrency: cfg.Concurrency,
		timeout:     cfg.HealthCheckTimeout,
	}
}

// RefreshRegistry reloads providers and routing rules from the database.
func (j *JobRunner) RefreshRegistry(ctx context.Context) error {
	return j.engine.Refresh(ctx)
}

// InvalidateCache drops one cached search if key is set, otherwise clears
// the whole response cache.
func (j *JobRunner) InvalidateCache(key string) {
	if key != "" {
		j.cache.Invalidate(key)
		j.logger.Info().Str("cache_key", key).Msg("cache entry invalidated")
		return
	}

	j.cache.Clear()
	j.logger.Info().Msg("response cache cleared")
}

// ResetBudget zeroes the call budget counters.
func (j *JobRunner) ResetBudget(ctx context.Context) error {
	if err := j.budget.Reset(ctx); err != nil {
		return err
	}
	j.logger.Info().Msg("call budget reset")
	return nil
}

// HealthCheckResult contains the outcome of one provider health sweep.
type HealthCheckResult struct {
	StartTime time.Time
	Duration  time.Duration
	Total     int
	Healthy   int
	Unhealthy int
}

type probeResult struct {
	provider string
	healthy  bool
	latency  time.Duration
}

// CheckProviderHealth probes every registered adapter concurrently and feeds
// the outcomes into the provider health scores.
func (j *JobRunner) CheckProviderHealth(ctx context.Context) *HealthCheckResult {
	startTime := time.Now()
	codes := j.adapters.Codes()

	result := &HealthCheckResult{
		StartTime: startTime,
		Total:     len(codes),
	}

	j.logger.Info().
		Int("providers", len(codes)).
		Int("concurrency", j.concurrency).
		Msg("starting provider health sweep")

	codesChan := make(chan string, len(codes))
	resultsChan := make(chan probeResult, len(codes))

	var wg sync.WaitGroup
	for i := 0; i < j.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.probeWorker(ctx, codesChan, resultsChan)
		}()
	}

	for _, code := range codes {
		codesChan <- code
	}
	close(codesChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for pr := range resultsChan {
		if pr.healthy {
			result.Healthy++
		} else {
			result.Unhealthy++
		}

		j.registry.RecordOutcome(registry.Outcome{
			Provider: pr.provider,
			Success:  pr.healthy,
			Latency:  pr.latency,
		})
	}

	result.Duration = time.Since(startTime)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("healthy", result.Healthy).
		Int("unhealthy", result.Unhealthy).
		Msg("provider health sweep completed")

	return result
}

func (j *JobRunner) probeWorker(ctx context.Context, codes <-chan string, results chan<- probeResult) {
	for code := range codes {
		select {
		case <-ctx.Done():
			return
		default:
		}

		a, ok := j.adapters.Get(code)
		if !ok {
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, j.timeout)
		start := time.Now()
		healthy := a.HealthCheck(probeCtx)
		cancel()

		latency := time.Since(start)
		if !healthy {
			j.logger.Warn().
				Str("provider", code).
				Dur("latency", latency).
				Msg("provider health probe failed")
		}

		results <- probeResult{provider: code, healthy: healthy, latency: latency}
	}
}
