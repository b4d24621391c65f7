// Package driveo implements the Driveo car rental supplier adapter.
package driveo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripweave/tripweave/internal/adapter"
	"github.com/tripweave/tripweave/internal/search"
)

const (
	// ProviderName identifies this car rental supplier.
	ProviderName = "driveo"

	// DefaultBaseURL is the Driveo API base URL.
	DefaultBaseURL = "https://api.driveo.co/v1"
)

// ClientConfig holds configuration for the Driveo client.
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

// Client is a Driveo API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient adapter.HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new Driveo client.
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

// Search queries Driveo for rental offers matching the request.
func (c *Client) Search(ctx context.Context, req *search.Request) ([]search.Result, error) {
	if req.Category != search.CategoryCars {
		return nil, adapter.ErrCategoryNotSupported
	}

	seg := req.Segments[0]

	params := url.Values{}
	params.Set("pickup", seg.Destination)
	params.Set("from", seg.Date.Format("2006-01-02"))
	params.Set("to", seg.Date.AddDate(0, 0, seg.Nights()).Format("2006-01-02"))
	if !seg.EndDate.IsZero() {
		params.Set("to", seg.EndDate.Format("2006-01-02"))
	}
	params.Set("currency", req.Currency)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/rentals?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "ApiKey "+c.apiKey)

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

	var rentalResp rentalsResponse
	if err := json.NewDecoder(resp.Body).Decode(&rentalResp); err != nil {
		return nil, fmt.Errorf("%w: %s", search.ErrMalformedResponse, err.Error())
	}

	results := make([]search.Result, 0, len(rentalResp.Rentals))
	for i := range rentalResp.Rentals {
		result, ok := c.toResult(&rentalResp.Rentals[i], req.Currency)
		if !ok {
			c.logger.Debug().
				Str("rental_id", rentalResp.Rentals[i].ID).
				Msg("dropping malformed driveo rental")
			continue
		}
		results = append(results, result)
	}

	return results, nil
}

// HealthCheck probes the supplier status endpoint.
func (c *Client) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", http.NoBody)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "ApiKey "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func (c *Client) toResult(r *rental, currency string) (search.Result, bool) {
	if r.ID == "" || r.TotalPrice < 0 || r.Vehicle.Class == "" {
		return search.Result{}, false
	}

	priceCurrency := r.Currency
	if priceCurrency == "" {
		priceCurrency = currency
	}

	return search.Result{
		ID:          ProviderName + "-" + r.ID,
		Provider:    ProviderName,
		SupplierRef: r.ID,
		Category:    search.CategoryCars,
		Price:       search.NewPrice(r.TotalPrice, priceCurrency),
		Car: &search.CarDetails{
			Vendor:       orDefault(r.Vendor, "Driveo Partner"),
			VehicleClass: r.Vehicle.Class,
			Transmission: r.Vehicle.Transmission,
			Seats:        r.Vehicle.Seats,
			PickupPoint:  r.PickupLocation,
			Unlimited:    r.UnlimitedMileage,
		},
	}, true
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// Driveo API response structures.

type rentalsResponse struct {
	Rentals []rental `json:"rentals"`
}

type rental struct {
	ID               string  `json:"id"`
	Vendor           string  `json:"vendor"`
	TotalPrice       float64 `json:"total_price"`
	Currency         string  `json:"currency,omitempty"`
	PickupLocation   string  `json:"pickup_location"`
	UnlimitedMileage bool    `json:"unlimited_mileage"`
	Vehicle          vehicle `json:"vehicle"`
}

type vehicle struct {
	Class        string `json:"class"`
	Transmission string `json:"transmission,omitempty"`
	Seats        int    `json:"seats,omitempty"`
}
