// Package resilience provides the circuit breakers, retry policies and
// resilient HTTP client protecting calls to third-party travel suppliers.
package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// Breaker defaults. A supplier trips after 5 consecutive failures, cools
// down for 60 seconds, then must produce 3 consecutive half-open successes
// to close again.
const (
	DefaultTripFailures      = 5
	DefaultCooldown          = 60 * time.Second
	DefaultHalfOpenSuccesses = 3
)

// BreakerConfig holds configuration for a per-supplier circuit breaker.
type BreakerConfig struct {
	// Name identifies the breaker for logging/metrics, usually the
	// provider code.
	Name string

	// TripFailures is the consecutive failure count that opens the
	// breaker. Default: 5.
	TripFailures uint32

	// Cooldown is the open-state period before switching to half-open.
	// Default: 60 seconds.
	Cooldown time.Duration

	// HalfOpenSuccesses is the consecutive success count in half-open
	// state required to close the breaker. Any failure while half-open
	// reopens it. Default: 3.
	HalfOpenSuccesses uint32

	// OnStateChange is called when the breaker state changes.
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultBreakerConfig returns the standard supplier breaker configuration.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:              name,
		TripFailures:      DefaultTripFailures,
		Cooldown:          DefaultCooldown,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

// NewBreaker creates a circuit breaker with the given configuration.
func NewBreaker[T any](cfg BreakerConfig) *gobreaker.CircuitBreaker[T] {
	tripFailures := cfg.TripFailures
	if tripFailures == 0 {
		tripFailures = DefaultTripFailures
	}
	cooldown := cfg.Cooldown
	if cooldown == 0 {
		cooldown = DefaultCooldown
	}
	halfOpenSuccesses := cfg.HalfOpenSuccesses
	if halfOpenSuccesses == 0 {
		halfOpenSuccesses = DefaultHalfOpenSuccesses
	}

	settings := gobreaker.Settings{
		Name: cfg.Name,
		// MaxRequests doubles as the consecutive success count needed to
		// close from half-open.
		MaxRequests: halfOpenSuccesses,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripFailures
		},
	}

	if cfg.OnStateChange != nil {
		settings.OnStateChange = cfg.OnStateChange
	}

	return gobreaker.NewCircuitBreaker[T](settings)
}
