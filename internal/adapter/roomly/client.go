// Package roomly implements the Roomly hotel supplier adapter. Roomly uses
// a session-token exchange with expiry-based reuse.
package roomly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripweave/tripweave/internal/adapter"
	"github.com/tripweave/tripweave/internal/search"
)

const (
	// ProviderName identifies this hotel supplier.
	ProviderName = "roomly"

	// DefaultBaseURL is the Roomly partner API base URL.
	DefaultBaseURL = "https://api.roomly.travel/v3"

	sessionLifetimeFallback = 30 * time.Minute
)

// ClientConfig holds configuration for the Roomly client.
type ClientConfig struct {
	// APIKey and APISecret are the partner credentials (required).
	APIKey    string
	APISecret string

	// BaseURL is the API base URL (optional).
	BaseURL string

	// HTTPClient executes search calls. Defaults to a plain client with an
	// 8 second timeout.
	HTTPClient adapter.HTTPDoer

	// AuthClient executes session-token calls. Defaults to HTTPClient.
	AuthClient adapter.HTTPDoer

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Roomly API client.
type Client struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	httpClient adapter.HTTPDoer
	authClient adapter.HTTPDoer
	tokens     *adapter.TokenCache
	logger     zerolog.Logger
}

// NewClient creates a new Roomly client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 8 * time.Second}
	}

	authClient := cfg.AuthClient
	if authClient == nil {
		authClient = httpClient
	}

	c := &Client{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		baseURL:    baseURL,
		httpClient: httpClient,
		authClient: authClient,
		logger:     cfg.Logger,
	}
	c.tokens = adapter.NewTokenCache(c.fetchSession)
	return c
}

// Name returns the provider code.
func (c *Client) Name() string {
	return ProviderName
}

// Search queries Roomly for property availability matching the request.
func (c *Client) Search(ctx context.Context, req *search.Request) ([]search.Result, error) {
	if req.Category != search.CategoryHotels {
		return nil, adapter.ErrCategoryNotSupported
	}

	token, err := c.tokens.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", search.ErrProviderAuth, err.Error())
	}

	seg := req.Segments[0]
	payload := availabilityRequest{
		Destination: seg.Destination,
		CheckIn:     seg.Date.Format("2006-01-02"),
		CheckOut:    seg.Date.AddDate(0, 0, seg.Nights()).Format("2006-01-02"),
		Rooms:       seg.Rooms,
		Adults:      req.Travelers.Adults,
		Children:    req.Travelers.Children,
		Currency:    req.Currency,
	}
	if !seg.EndDate.IsZero() {
		payload.CheckOut = seg.EndDate.Format("2006-01-02")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/availability", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("X-Session-Token", token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
		return nil, search.ErrProviderAuth
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var availResp availabilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&availResp); err != nil {
		return nil, fmt.Errorf("%w: %s", search.ErrMalformedResponse, err.Error())
	}

	return c.toResults(&availResp, req.Currency), nil
}

// HealthCheck probes the supplier health endpoint.
func (c *Client) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// fetchSession exchanges the partner credentials for a session token.
func (c *Client) fetchSession(ctx context.Context) (string, time.Time, error) {
	body, _ := json.Marshal(sessionRequest{APIKey: c.apiKey, APISecret: c.apiSecret})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sessions", bytes.NewReader(body))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("creating session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.authClient.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("executing session request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", time.Time{}, fmt.Errorf("session endpoint status %d", resp.StatusCode)
	}

	var sessionResp sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sessionResp); err != nil {
		return "", time.Time{}, fmt.Errorf("decoding session response: %w", err)
	}

	expiresAt, err := time.Parse(time.RFC3339, sessionResp.ExpiresAt)
	if err != nil || expiresAt.Before(time.Now()) {
		expiresAt = time.Now().Add(sessionLifetimeFallback)
	}

	c.logger.Debug().Msg("refreshed roomly session token")
	return sessionResp.Token, expiresAt, nil
}

func (c *Client) toResults(resp *availabilityResponse, currency string) []search.Result {
	results := make([]search.Result, 0, len(resp.Properties))

	for i := range resp.Properties {
		result, ok := c.toResult(&resp.Properties[i], currency)
		if !ok {
			c.logger.Debug().
				Str("property_id", resp.Properties[i].ID).
				Msg("dropping malformed roomly property")
			continue
		}
		results = append(results, result)
	}

	return results
}

func (c *Client) toResult(p *property, currency string) (search.Result, bool) {
	if p.ID == "" || p.Name == "" || len(p.Rates) == 0 {
		return search.Result{}, false
	}

	priceCurrency := p.Currency
	if priceCurrency == "" {
		priceCurrency = currency
	}

	rooms := make([]search.RoomOffer, 0, len(p.Rates))
	lowest := -1.0
	for _, rate := range p.Rates {
		if rate.Total < 0 {
			continue
		}
		rooms = append(rooms, search.RoomOffer{
			Name:               orDefault(rate.RoomName, "Standard Room"),
			Price:              search.NewPrice(rate.Total, priceCurrency),
			Occupancy:          maxInt(rate.Occupancy, 1),
			FreeCancellation:   rate.Refundable,
			CancellationPolicy: rate.CancellationPolicy,
		})
		if lowest < 0 || rate.Total < lowest {
			lowest = rate.Total
		}
	}
	if len(rooms) == 0 {
		return search.Result{}, false
	}

	return search.Result{
		ID:          ProviderName + "-" + p.ID,
		Provider:    ProviderName,
		SupplierRef: p.ID,
		Category:    search.CategoryHotels,
		Price:       search.NewPrice(lowest, priceCurrency),
		Hotel: &search.HotelDetails{
			Name:        p.Name,
			City:        p.City,
			Country:     p.Country,
			StarRating:  p.Stars,
			GuestRating: p.GuestScore,
			Images:      p.Images,
			Rooms:       rooms,
		},
	}, true
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Roomly API request/response structures.

type sessionRequest struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

type sessionResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type availabilityRequest struct {
	Destination string `json:"destination"`
	CheckIn     string `json:"check_in"`
	CheckOut    string `json:"check_out"`
	Rooms       int    `json:"rooms"`
	Adults      int    `json:"adults"`
	Children    int    `json:"children,omitempty"`
	Currency    string `json:"currency,omitempty"`
}

type availabilityResponse struct {
	Properties []property `json:"properties"`
}

type property struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	City       string   `json:"city"`
	Country    string   `json:"country,omitempty"`
	Stars      int      `json:"stars,omitempty"`
	GuestScore float64  `json:"guest_score,omitempty"`
	Images     []string `json:"images,omitempty"`
	Currency   string   `json:"currency,omitempty"`
	Rates      []rate   `json:"rates"`
}

type rate struct {
	RoomName           string  `json:"room_name"`
	Total              float64 `json:"total"`
	Occupancy          int     `json:"occupancy,omitempty"`
	Refundable         bool    `json:"refundable"`
	CancellationPolicy string  `json:"cancellation_policy,omitempty"`
}
