package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors for resilient supplier calls.
var (
	// ErrCircuitOpen is returned when the supplier's circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrAuthFailed is returned on 401/403 responses. Auth errors are never
	// retried; retrying a misconfigured credential cannot help.
	ErrAuthFailed = errors.New("supplier authentication failed")
)

// ClientConfig holds configuration for the resilient HTTP client used for
// supplier auth endpoints and health checks.
type ClientConfig struct {
	// Name identifies this client for circuit breaker naming.
	Name string

	// Timeout is the request timeout for individual HTTP calls.
	// Default: 8 seconds.
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts on transient
	// failures. Default: 2.
	MaxRetries uint64

	// InitialInterval is the initial retry backoff interval.
	// Default: 100ms.
	InitialInterval time.Duration

	// MaxInterval is the maximum retry backoff interval.
	// Default: 3 seconds.
	MaxInterval time.Duration

	// Breaker is the circuit breaker configuration.
	// If nil, uses DefaultBreakerConfig.
	Breaker *BreakerConfig

	// HTTPClient overrides the underlying HTTP client.
	// Default: a plain client with Timeout.
	HTTPClient *http.Client
}

// DefaultClientConfig returns sensible defaults for supplier-facing calls.
func DefaultClientConfig(name string) ClientConfig {
	breaker := DefaultBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         8 * time.Second,
		MaxRetries:      2,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     3 * time.Second,
		Breaker:         &breaker,
	}
}

// Client is a resilient HTTP client with circuit breaker and retry logic.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	config     ClientConfig
}

// NewClient creates a new resilient HTTP client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 3 * time.Second
	}

	var cb *gobreaker.CircuitBreaker[*http.Response]
	if cfg.Breaker != nil {
		cb = NewBreaker[*http.Response](*cfg.Breaker) //nolint:bodyclose // type param, not response
	} else {
		defaultCfg := DefaultBreakerConfig(cfg.Name)
		cb = NewBreaker[*http.Response](defaultCfg) //nolint:bodyclose // type param, not response
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		httpClient: httpClient,
		breaker:    cb,
		config:     cfg,
	}
}

// Do executes an HTTP request with circuit breaker protection and retry
// logic. Transient failures (network errors, 5xx, 429) are retried with
// exponential backoff; 401/403 fail immediately with ErrAuthFailed; an open
// breaker fails immediately with ErrCircuitOpen.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext executes an HTTP request with the given context.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0 // retries bounded by WithMaxRetries

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var lastResp *http.Response

	operation := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			reqClone := req.Clone(ctx)
			// Clone shares the original body reader, which an earlier
			// attempt may have consumed. Rewind through GetBody.
			if req.GetBody != nil {
				body, bodyErr := req.GetBody()
				if bodyErr != nil {
					return nil, bodyErr
				}
				reqClone.Body = body
			}
			r, err := c.httpClient.Do(reqClone)
			if err != nil {
				return nil, err
			}

			switch {
			case r.StatusCode == http.StatusUnauthorized || r.StatusCode == http.StatusForbidden:
				return r, ErrAuthFailed
			case r.StatusCode >= 500:
				return r, &ServerError{StatusCode: r.StatusCode}
			case r.StatusCode == http.StatusTooManyRequests:
				return r, &ServerError{StatusCode: r.StatusCode}
			}

			return r, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if errors.Is(err, ErrAuthFailed) {
				if resp != nil {
					resp.Body.Close()
				}
				return backoff.Permanent(ErrAuthFailed)
			}

			if resp != nil {
				// A superseded response is never handed to the caller, so
				// its body must be closed here.
				if lastResp != nil {
					lastResp.Body.Close()
				}
				lastResp = resp
			}
			return err
		}

		if lastResp != nil {
			lastResp.Body.Close()
		}
		lastResp = resp
		return nil
	}

	err := backoff.Retry(operation, policy)
	if err != nil {
		// A 5xx that exhausted retries still carries a response.
		if lastResp != nil && !errors.Is(err, ErrAuthFailed) {
			return lastResp, nil
		}
		return nil, err
	}

	return lastResp, nil
}

// ServerError represents a retryable HTTP server or rate-limit error.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// BreakerState returns the current state of the circuit breaker.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// BreakerCounts returns the current counts of the circuit breaker.
func (c *Client) BreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}
