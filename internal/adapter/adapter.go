// Package adapter defines the supplier adapter contract and the static
// registry that maps provider codes to implementations.
package adapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/tripweave/tripweave/internal/search"
)

// ErrCategoryNotSupported is returned when an adapter receives a request
// for a vertical it does not serve. Selection should prevent this; the
// error is a guard against registry misconfiguration.
var ErrCategoryNotSupported = errors.New("category not supported by adapter")

// Adapter translates between the unified search schema and one supplier's
// native API. Implementations own their supplier credentials and token
// caching, never retry failed searches internally (retry belongs to the
// execution coordinator) and must tolerate missing optional fields in
// supplier responses by defaulting or omitting them.
type Adapter interface {
	// Name returns the provider code the adapter serves.
	Name() string

	// Search executes the supplier query and returns normalized results.
	// Individual malformed records are dropped, not surfaced as errors.
	Search(ctx context.Context, req *search.Request) ([]search.Result, error)

	// HealthCheck probes the supplier and reports reachability.
	HealthCheck(ctx context.Context) bool
}

// HTTPDoer is the HTTP client surface adapters depend on. Both *http.Client
// and *resilience.Client satisfy it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Set is the static adapter registry keyed by provider code.
type Set struct {
	adapters map[string]Adapter
}

// NewSet builds a registry from the given adapters.
func NewSet(adapters ...Adapter) *Set {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &Set{adapters: m}
}

// Get returns the adapter for a provider code.
func (s *Set) Get(code string) (Adapter, bool) {
	a, ok := s.adapters[code]
	return a, ok
}

// Codes returns the registered provider codes.
func (s *Set) Codes() []string {
	codes := make([]string, 0, len(s.adapters))
	for code := range s.adapters {
		codes = append(codes, code)
	}
	return codes
}

// Len returns the number of registered adapters.
func (s *Set) Len() int {
	return len(s.adapters)
}
