// Package venturex implements the VentureX experiences supplier adapter.
package venturex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripweave/tripweave/internal/adapter"
	"github.com/tripweave/tripweave/internal/search"
)

const (
	// ProviderName identifies this experiences supplier.
	ProviderName = "venturex"

	// DefaultBaseURL is the VentureX API base URL.
	DefaultBaseURL = "https://api.venturex.travel/v2"
)

// ClientConfig holds configuration for the VentureX client.
type ClientConfig struct {
	// APIKey is the partner API key (required).
	APIKey string

	// BaseURL is the API base URL (optional).
	BaseURL string

	// HTTPClient executes API calls. Defaults to a plain client with an
	// 8 second timeout.
	HTTPClient adapter.HTTPDoer

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a VentureX API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient adapter.HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new VentureX client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 8 * time.Second}
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider code.
func (c *Client) Name() string {
	return ProviderName
}

// Search queries VentureX for bookable activities matching the request.
func (c *Client) Search(ctx context.Context, req *search.Request) ([]search.Result, error) {
	if req.Category != search.CategoryExperiences {
		return nil, adapter.ErrCategoryNotSupported
	}

	seg := req.Segments[0]

	params := url.Values{}
	params.Set("destination", seg.Destination)
	params.Set("date", seg.Date.Format("2006-01-02"))
	params.Set("participants", strconv.Itoa(req.Travelers.Total()))
	params.Set("currency", req.Currency)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/activities?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, search.ErrProviderAuth
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var actResp activitiesResponse
	if err := json.NewDecoder(resp.Body).Decode(&actResp); err != nil {
		return nil, fmt.Errorf("%w: %s", search.ErrMalformedResponse, err.Error())
	}

	results := make([]search.Result, 0, len(actResp.Activities))
	for i := range actResp.Activities {
		result, ok := c.toResult(&actResp.Activities[i], req.Currency)
		if !ok {
			c.logger.Debug().
				Str("activity_id", actResp.Activities[i].ID).
				Msg("dropping malformed venturex activity")
			continue
		}
		results = append(results, result)
	}

	return results, nil
}

// HealthCheck probes the supplier ping endpoint.
func (c *Client) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ping", http.NoBody)
	if err != nil {
		return false
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func (c *Client) toResult(a *activity, currency string) (search.Result, bool) {
	if a.ID == "" || a.Title == "" || a.PriceFrom < 0 {
		return search.Result{}, false
	}

	priceCurrency := a.Currency
	if priceCurrency == "" {
		priceCurrency = currency
	}

	return search.Result{
		ID:          ProviderName + "-" + a.ID,
		Provider:    ProviderName,
		SupplierRef: a.ID,
		Category:    search.CategoryExperiences,
		Price:       search.NewPrice(a.PriceFrom, priceCurrency),
		Experience: &search.ExperienceDetails{
			Title:           a.Title,
			Location:        a.Location,
			DurationMinutes: a.DurationMinutes,
			Rating:          a.Rating,
			Category:        a.Category,
		},
	}, true
}

// VentureX API response structures.

type activitiesResponse struct {
	Activities []activity `json:"activities"`
}

type activity struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Location        string  `json:"location"`
	PriceFrom       float64 `json:"price_from"`
	Currency        string  `json:"currency,omitempty"`
	DurationMinutes int     `json:"duration_minutes,omitempty"`
	Rating          float64 `json:"rating,omitempty"`
	Category        string  `json:"category,omitempty"`
}
