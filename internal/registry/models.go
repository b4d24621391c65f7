// Package registry holds the provider catalog: per-supplier capabilities,
// routing metadata and live health state shared by all in-flight searches.
package registry

import (
	"errors"
	"time"

	"github.com/tripweave/tripweave/internal/search"
)

// Registry errors.
var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrProviderDisabled = errors.New("provider is disabled")
)

// Provider is a registered travel supplier. Static fields are operator
// configuration; HealthScore, AvgLatencyMS and ConsecutiveFailures are
// mutated continuously from call outcomes.
type Provider struct {
	// Code is the stable provider identifier used in routing and results.
	Code string `json:"code"`

	// Name is the display name.
	Name string `json:"name"`

	// Categories lists the inventory verticals the provider can serve.
	Categories []search.Category `json:"categories"`

	// StrongRegions are regions where the provider has first-class inventory.
	StrongRegions []string `json:"strongRegions"`

	// CoverageRegions are regions the provider covers with thinner inventory.
	CoverageRegions []string `json:"coverageRegions"`

	// Priority breaks score ties; higher wins.
	Priority int `json:"priority"`

	// CostPerCall is the per-request cost in USD cents.
	CostPerCall float64 `json:"costPerCall"`

	// Enabled providers participate in selection. Providers are disabled
	// rather than deleted.
	Enabled bool `json:"enabled"`

	// HealthScore is the rolling 0-100 health of the provider.
	HealthScore float64 `json:"healthScore"`

	// AvgLatencyMS is the rolling average response latency.
	AvgLatencyMS float64 `json:"avgLatencyMs"`

	// ConsecutiveFailures counts failures since the last success.
	ConsecutiveFailures int `json:"consecutiveFailures"`

	// UpdatedAt is when health fields were last written.
	UpdatedAt time.Time `json:"updatedAt"`
}

// SupportsCategory reports whether the provider serves the given vertical.
func (p *Provider) SupportsCategory(c search.Category) bool {
	for _, cat := range p.Categories {
		if cat == c {
			return true
		}
	}
	return false
}

// RegionFit describes how well a provider covers a region.
type RegionFit int

const (
	RegionNone RegionFit = iota
	RegionCoverage
	RegionStrong
)

// FitForRegion classifies the provider's coverage of a region. An empty
// region matches as coverage so global searches are never starved.
func (p *Provider) FitForRegion(region string) RegionFit {
	if region == "" {
		return RegionCoverage
	}
	for _, r := range p.StrongRegions {
		if r == region {
			return RegionStrong
		}
	}
	for _, r := range p.CoverageRegions {
		if r == region {
			return RegionCoverage
		}
	}
	return RegionNone
}

// RoutingRule is an operator-defined scoring override evaluated per search.
// Rules are static configuration, read-only at request time.
type RoutingRule struct {
	// ID identifies the rule.
	ID string `json:"id"`

	// Category limits the rule to one vertical; empty matches any.
	Category search.Category `json:"category,omitempty"`

	// Region limits the rule to one region; empty matches any.
	Region string `json:"region,omitempty"`

	// Provider is the target provider code the boost applies to.
	Provider string `json:"provider"`

	// Boost is the additive score adjustment, negative to penalize.
	Boost float64 `json:"boost"`

	// Description documents the operator intent.
	Description string `json:"description,omitempty"`
}

// Matches reports whether the rule applies to a search in the given
// category and region.
func (r *RoutingRule) Matches(category search.Category, region string) bool {
	if r.Category != "" && r.Category != category {
		return false
	}
	if r.Region != "" && r.Region != region {
		return false
	}
	return true
}

// Outcome is the recorded result of one adapter call, fed into health
// tracking after the response is assembled.
type Outcome struct {
	Provider string
	Success  bool
	Latency  time.Duration
	Err      error
}
