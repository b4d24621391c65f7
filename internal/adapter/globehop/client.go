// Package globehop implements the GlobeHop flight and package supplier
// adapter. GlobeHop authenticates with a static API key header.
package globehop

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
	// ProviderName identifies this supplier.
	ProviderName = "globehop"

	// DefaultBaseURL is the GlobeHop API base URL.
	DefaultBaseURL = "https://partners.globehop.io/api/v1"
)

// ClientConfig holds configuration for the GlobeHop client.
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

// Client is a GlobeHop API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient adapter.HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new GlobeHop client.
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

// Search queries GlobeHop for itineraries matching the request. GlobeHop
// serves both plain flights and flight+hotel packages through the same
// itinerary endpoint.
func (c *Client) Search(ctx context.Context, req *search.Request) ([]search.Result, error) {
	switch req.Category {
	case search.CategoryFlights, search.CategoryPackages:
	default:
		return nil, adapter.ErrCategoryNotSupported
	}

	seg := req.Segments[0]

	params := url.Values{}
	params.Set("from", seg.Origin)
	params.Set("to", seg.Destination)
	params.Set("depart", seg.Date.Format("2006-01-02"))
	if !seg.EndDate.IsZero() {
		params.Set("return", seg.EndDate.Format("2006-01-02"))
	}
	params.Set("adults", strconv.Itoa(req.Travelers.Adults))
	if req.Travelers.Children > 0 {
		params.Set("children", strconv.Itoa(req.Travelers.Children))
	}
	params.Set("currency", req.Currency)
	if req.Category == search.CategoryPackages {
		params.Set("bundle", "hotel")
	}
	if req.Cabin != "" {
		params.Set("cabin", string(req.Cabin))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/itineraries?"+params.Encode(), http.NoBody)
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

	var ghResp itinerariesResponse
	if err := json.NewDecoder(resp.Body).Decode(&ghResp); err != nil {
		return nil, fmt.Errorf("%w: %s", search.ErrMalformedResponse, err.Error())
	}

	return c.toResults(&ghResp, req), nil
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

func (c *Client) toResults(resp *itinerariesResponse, req *search.Request) []search.Result {
	results := make([]search.Result, 0, len(resp.Itineraries))

	for i := range resp.Itineraries {
		result, ok := c.toResult(&resp.Itineraries[i], req)
		if !ok {
			c.logger.Debug().
				Str("itinerary_id", resp.Itineraries[i].ID).
				Msg("dropping malformed globehop itinerary")
			continue
		}
		results = append(results, result)
	}

	return results
}

func (c *Client) toResult(it *itinerary, req *search.Request) (search.Result, bool) {
	if it.ID == "" || it.Price.Total < 0 || len(it.Outbound) == 0 {
		return search.Result{}, false
	}

	outbound := toLeg(it.Outbound)
	if len(outbound.Segments) == 0 {
		return search.Result{}, false
	}

	flight := &search.FlightDetails{Outbound: outbound}
	if len(it.Inbound) > 0 {
		inbound := toLeg(it.Inbound)
		if len(inbound.Segments) > 0 {
			flight.Inbound = &inbound
		}
	}

	currency := it.Price.Currency
	if currency == "" {
		currency = req.Currency
	}

	return search.Result{
		ID:          ProviderName + "-" + it.ID,
		Provider:    ProviderName,
		SupplierRef: it.ID,
		Category:    req.Category,
		Price:       search.NewPrice(it.Price.Total, currency),
		Flight:      flight,
	}, true
}

func toLeg(hops []hop) search.FlightLeg {
	leg := search.FlightLeg{Segments: make([]search.FlightSegment, 0, len(hops))}

	for _, h := range hops {
		if h.From == "" || h.To == "" {
			continue
		}

		departure, _ := time.Parse(time.RFC3339, h.DepartureTime)
		arrival, _ := time.Parse(time.RFC3339, h.ArrivalTime)

		leg.Segments = append(leg.Segments, search.FlightSegment{
			Carrier:          h.Airline,
			CarrierName:      h.AirlineName,
			FlightNumber:     h.FlightNo,
			DepartureAirport: h.From,
			DepartureTime:    departure,
			ArrivalAirport:   h.To,
			ArrivalTime:      arrival,
			DurationMinutes:  h.Minutes,
		})
	}

	leg.Derive()
	return leg
}

// GlobeHop API response structures.

type itinerariesResponse struct {
	Itineraries []itinerary `json:"itineraries"`
}

type itinerary struct {
	ID       string   `json:"id"`
	Price    ghPrice  `json:"price"`
	Outbound []hop    `json:"outbound"`
	Inbound  []hop    `json:"inbound,omitempty"`
	Bundle   *string  `json:"bundle,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

type ghPrice struct {
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
}

type hop struct {
	From          string `json:"from"`
	To            string `json:"to"`
	DepartureTime string `json:"departure_time"`
	ArrivalTime   string `json:"arrival_time"`
	Airline       string `json:"airline"`
	AirlineName   string `json:"airline_name,omitempty"`
	FlightNo      string `json:"flight_no"`
	Minutes       int    `json:"minutes"`
}
