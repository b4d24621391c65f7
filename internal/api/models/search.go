package models

import (
	"github.com/tripweave/tripweave/internal/dispatch"
	"github.com/tripweave/tripweave/internal/engine"
	"github.com/tripweave/tripweave/internal/search"
)

// SearchResponse is the envelope for POST /v1/search. Success is true
// whenever a well-formed request produced a response body, even if every
// supplier failed and the results are cached, stale or synthetic.
type SearchResponse struct {
	Success  bool           `json:"success"`
	Data     SearchData     `json:"data"`
	Metadata SearchMetadata `json:"metadata"`
}

// SearchData holds the ranked results and price summary.
type SearchData struct {
	Results    []search.Result    `json:"results"`
	PriceRange *search.PriceRange `json:"priceRange,omitempty"`
}

// SearchMetadata describes how the response was produced.
type SearchMetadata struct {
	SearchID           string              `json:"searchId"`
	Category           search.Category     `json:"category"`
	ProvidersQueried   int                 `json:"providersQueried"`
	ProvidersSucceeded int                 `json:"providersSucceeded"`
	ProvidersFailed    int                 `json:"providersFailed"`
	Providers          []dispatch.CallMeta `json:"providers,omitempty"`
	TotalResults       int                 `json:"totalResults"`
	CacheHit           bool                `json:"cacheHit"`
	Stale              bool                `json:"stale,omitempty"`
	FallbackReason     string              `json:"fallbackReason,omitempty"`
	BudgetWarning      bool                `json:"budgetWarning,omitempty"`
	DurationMS         int64               `json:"durationMs"`
}

// NewSearchResponse assembles the envelope from an engine outcome.
func NewSearchResponse(searchID string, category search.Category, out *engine.Outcome) SearchResponse {
	meta := SearchMetadata{
		SearchID:       searchID,
		Category:       category,
		Providers:      out.Providers,
		TotalResults:   len(out.Results),
		CacheHit:       out.CacheHit,
		Stale:          out.Stale,
		FallbackReason: string(out.FallbackReason),
		BudgetWarning:  out.BudgetWarning,
		DurationMS:     out.DurationMS,
	}

	for _, p := range out.Providers {
		meta.ProvidersQueried++
		if p.Success {
			meta.ProvidersSucceeded++
		} else {
			meta.ProvidersFailed++
		}
	}

	data := SearchData{Results: out.Results}
	if len(out.Results) > 0 {
		pr := out.PriceRange
		data.PriceRange = &pr
	}
	if data.Results == nil {
		data.Results = []search.Result{}
	}

	return SearchResponse{Success: true, Data: data, Metadata: meta}
}

// OfferResponse is the envelope for GET /v1/offers/{offerId}.
type OfferResponse struct {
	Success bool          `json:"success"`
	Data    search.Result `json:"data"`
}

// ProviderHealth is one provider's live state for the health listing.
type ProviderHealth struct {
	Code                string    `json:"code"`
	Name                string    `json:"name"`
	Categories          []string  `json:"categories"`
	Enabled             bool      `json:"enabled"`
	HealthScore         float64   `json:"healthScore"`
	AvgLatencyMS        float64   `json:"avgLatencyMs"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	CircuitState        string    `json:"circuitState"`
	UpdatedAt           Timestamp `json:"updatedAt"`
}

// ProviderHealthResponse is the envelope for GET /v1/providers/health.
type ProviderHealthResponse struct {
	Success   bool             `json:"success"`
	Providers []ProviderHealth `json:"providers"`
}
