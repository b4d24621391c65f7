package resilience

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/tripweave/tripweave/internal/search"
)

// BreakerSet manages one circuit breaker per provider. The selection engine
// reads breaker state to exclude open providers; the execution coordinator
// runs every adapter call through the provider's breaker so failures and
// successes drive the state machine.
type BreakerSet struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker[[]search.Result]
	template BreakerConfig
	logger   zerolog.Logger
}

// NewBreakerSet creates a breaker set. The template configuration is applied
// to every provider breaker, with the provider code as the breaker name.
func NewBreakerSet(template BreakerConfig, logger zerolog.Logger) *BreakerSet {
	return &BreakerSet{
		breakers: make(map[string]*gobreaker.CircuitBreaker[[]search.Result]),
		template: template,
		logger:   logger,
	}
}

// For returns the breaker for a provider, creating it on first use.
func (s *BreakerSet) For(provider string) *gobreaker.CircuitBreaker[[]search.Result] {
	s.mu.RLock()
	cb, ok := s.breakers[provider]
	s.mu.RUnlock()
	if ok {
		return cb
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok := s.breakers[provider]; ok {
		return cb
	}

	cfg := s.template
	cfg.Name = provider
	logger := s.logger
	cfg.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn().
			Str("provider", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("circuit breaker state change")
	}

	cb = NewBreaker[[]search.Result](cfg)
	s.breakers[provider] = cb
	return cb
}

// State returns the breaker state for a provider. Providers that have never
// been called report closed.
func (s *BreakerSet) State(provider string) gobreaker.State {
	s.mu.RLock()
	cb, ok := s.breakers[provider]
	s.mu.RUnlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}

// Open reports whether the provider's breaker is currently open.
func (s *BreakerSet) Open(provider string) bool {
	return s.State(provider) == gobreaker.StateOpen
}

// Counts returns the breaker counts for a provider.
func (s *BreakerSet) Counts(provider string) gobreaker.Counts {
	s.mu.RLock()
	cb, ok := s.breakers[provider]
	s.mu.RUnlock()
	if !ok {
		return gobreaker.Counts{}
	}
	return cb.Counts()
}
