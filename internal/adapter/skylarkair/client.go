// Package skylarkair implements the Skylark Air flight supplier adapter.
package skylarkair

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
	// ProviderName identifies this flight supplier.
	ProviderName = "skylarkair"

	// DefaultBaseURL is the Skylark Air API base URL.
	DefaultBaseURL = "https://api.skylarkair.com/v2"

	// tokenLifetimeFallback is assumed when the token response omits
	// expires_in.
	tokenLifetimeFallback = 20 * time.Minute
)

// ClientConfig holds configuration for the Skylark Air client.
type ClientConfig struct {
	// ClientID and ClientSecret are the OAuth credentials (required).
	ClientID     string
	ClientSecret string

	// BaseURL is the API base URL (optional).
	BaseURL string

	// HTTPClient executes search calls. Defaults to a plain client with an
	// 8 second timeout; retry policy belongs to the execution coordinator.
	HTTPClient adapter.HTTPDoer

	// AuthClient executes token-exchange calls. Defaults to HTTPClient.
	AuthClient adapter.HTTPDoer

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Skylark Air API client.
type Client struct {
	clientID     string
	clientSecret string
	baseURL      string
	httpClient   adapter.HTTPDoer
	authClient   adapter.HTTPDoer
	tokens       *adapter.TokenCache
	logger       zerolog.Logger
}

// NewClient creates a new Skylark Air client.
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
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		baseURL:      baseURL,
		httpClient:   httpClient,
		authClient:   authClient,
		logger:       cfg.Logger,
	}
	c.tokens = adapter.NewTokenCache(c.fetchToken)
	return c
}

// Name returns the provider code.
func (c *Client) Name() string {
	return ProviderName
}

// Search queries Skylark Air for flight offers matching the request.
func (c *Client) Search(ctx context.Context, req *search.Request) ([]search.Result, error) {
	if req.Category != search.CategoryFlights {
		return nil, adapter.ErrCategoryNotSupported
	}

	token, err := c.tokens.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", search.ErrProviderAuth, err.Error())
	}

	body, err := json.Marshal(c.toOfferRequest(req))
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/offers/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Token may have been revoked server-side; next call re-fetches.
		c.tokens.Invalidate()
		return nil, search.ErrProviderAuth
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var offerResp offerSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&offerResp); err != nil {
		return nil, fmt.Errorf("%w: %s", search.ErrMalformedResponse, err.Error())
	}

	return c.toResults(&offerResp, req.Currency), nil
}

// HealthCheck probes the supplier status endpoint.
func (c *Client) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", http.NoBody)
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

// fetchToken exchanges client credentials for a bearer token.
func (c *Client) fetchToken(ctx context.Context) (string, time.Time, error) {
	body, _ := json.Marshal(tokenRequest{
		GrantType:    "client_credentials",
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", bytes.NewReader(body))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.authClient.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("executing token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("token endpoint status %d", resp.StatusCode)
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", time.Time{}, fmt.Errorf("decoding token response: %w", err)
	}

	lifetime := tokenLifetimeFallback
	if tokenResp.ExpiresIn > 0 {
		lifetime = time.Duration(tokenResp.ExpiresIn) * time.Second
	}

	c.logger.Debug().Msg("refreshed skylarkair access token")
	return tokenResp.AccessToken, time.Now().Add(lifetime), nil
}

// toOfferRequest builds the supplier-specific search payload.
func (c *Client) toOfferRequest(req *search.Request) offerSearchRequest {
	out := offerSearchRequest{
		Currency:   req.Currency,
		Adults:     req.Travelers.Adults,
		Children:   req.Travelers.Children,
		CabinClass: string(req.Cabin),
	}

	for _, seg := range req.Segments {
		out.Slices = append(out.Slices, offerSlice{
			Origin:      seg.Origin,
			Destination: seg.Destination,
			Date:        seg.Date.Format("2006-01-02"),
		})
		if !seg.EndDate.IsZero() {
			out.Slices = append(out.Slices, offerSlice{
				Origin:      seg.Destination,
				Destination: seg.Origin,
				Date:        seg.EndDate.Format("2006-01-02"),
			})
		}
	}

	if req.Constraints.DirectOnly {
		maxStops := 0
		out.MaxConnections = &maxStops
	} else if req.Constraints.MaxStops != nil {
		out.MaxConnections = req.Constraints.MaxStops
	}

	return out
}

// toResults normalizes the supplier response. Malformed offers are dropped
// individually; valid offers from the same response are still used.
func (c *Client) toResults(resp *offerSearchResponse, currency string) []search.Result {
	results := make([]search.Result, 0, len(resp.Offers))

	for i := range resp.Offers {
		result, ok := c.toResult(&resp.Offers[i], currency)
		if !ok {
			c.logger.Debug().
				Str("offer_id", resp.Offers[i].ID).
				Msg("dropping malformed skylarkair offer")
			continue
		}
		results = append(results, result)
	}

	return results
}

func (c *Client) toResult(offer *skylarkOffer, currency string) (search.Result, bool) {
	if offer.ID == "" || offer.TotalAmount < 0 || len(offer.Slices) == 0 {
		return search.Result{}, false
	}

	outbound, ok := toLeg(offer.Slices[0])
	if !ok {
		return search.Result{}, false
	}

	flight := &search.FlightDetails{Outbound: outbound}
	if len(offer.Slices) > 1 {
		if inbound, ok := toLeg(offer.Slices[1]); ok {
			flight.Inbound = &inbound
		}
	}

	priceCurrency := offer.Currency
	if priceCurrency == "" {
		priceCurrency = currency
	}

	return search.Result{
		ID:          ProviderName + "-" + offer.ID,
		Provider:    ProviderName,
		SupplierRef: offer.ID,
		Category:    search.CategoryFlights,
		Price:       search.NewPrice(offer.TotalAmount, priceCurrency),
		Flight:      flight,
	}, true
}

func toLeg(slice skylarkSlice) (search.FlightLeg, bool) {
	if len(slice.Segments) == 0 {
		return search.FlightLeg{}, false
	}

	leg := search.FlightLeg{Segments: make([]search.FlightSegment, 0, len(slice.Segments))}
	for _, s := range slice.Segments {
		if s.Origin == "" || s.Destination == "" {
			continue
		}

		departure, _ := time.Parse(time.RFC3339, s.DepartsAt)
		arrival, _ := time.Parse(time.RFC3339, s.ArrivesAt)

		duration := s.DurationMinutes
		if duration == 0 && !departure.IsZero() && arrival.After(departure) {
			duration = int(arrival.Sub(departure).Minutes())
		}

		leg.Segments = append(leg.Segments, search.FlightSegment{
			Carrier:          s.CarrierCode,
			CarrierName:      s.CarrierName,
			FlightNumber:     s.FlightNumber,
			DepartureAirport: s.Origin,
			DepartureTime:    departure,
			ArrivalAirport:   s.Destination,
			ArrivalTime:      arrival,
			DurationMinutes:  duration,
			Cabin:            s.Cabin,
		})
	}

	if len(leg.Segments) == 0 {
		return search.FlightLeg{}, false
	}

	leg.Derive()
	return leg, true
}

// Skylark Air API request/response structures.

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type offerSearchRequest struct {
	Slices         []offerSlice `json:"slices"`
	Adults         int          `json:"adults"`
	Children       int          `json:"children,omitempty"`
	CabinClass     string       `json:"cabin_class,omitempty"`
	Currency       string       `json:"currency,omitempty"`
	MaxConnections *int         `json:"max_connections,omitempty"`
}

type offerSlice struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Date        string `json:"date"`
}

type offerSearchResponse struct {
	Offers []skylarkOffer `json:"offers"`
}

type skylarkOffer struct {
	ID          string         `json:"id"`
	TotalAmount float64        `json:"total_amount"`
	Currency    string         `json:"total_currency"`
	Slices      []skylarkSlice `json:"slices"`
}

type skylarkSlice struct {
	Segments []skylarkSegment `json:"segments"`
}

type skylarkSegment struct {
	Origin          string `json:"origin"`
	Destination     string `json:"destination"`
	DepartsAt       string `json:"departing_at"`
	ArrivesAt       string `json:"arriving_at"`
	CarrierCode     string `json:"marketing_carrier"`
	CarrierName     string `json:"marketing_carrier_name"`
	FlightNumber    string `json:"flight_number"`
	DurationMinutes int    `json:"duration_minutes"`
	Cabin           string `json:"cabin_class"`
}
