package adapter

import (
	"context"
	"sync"
	"time"
)

// tokenExpirySlack refreshes tokens slightly before their stated expiry so
// an in-flight request never crosses the expiry boundary mid-call.
const tokenExpirySlack = 30 * time.Second

// TokenFetcher exchanges credentials for a bearer token and its expiry.
type TokenFetcher func(ctx context.Context) (token string, expiresAt time.Time, err error)

// TokenCache is a process-wide, thread-safe cache for one supplier's auth
// token. Expiry is checked on every read rather than refreshed by a
// background timer. The fetch runs under the lock, so concurrent callers
// never trigger parallel refreshes against the supplier's auth endpoint.
type TokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	fetch     TokenFetcher
}

// NewTokenCache creates a token cache backed by the given fetcher.
func NewTokenCache(fetch TokenFetcher) *TokenCache {
	return &TokenCache{fetch: fetch}
}

// Get returns a valid token, refreshing through the fetcher when the cached
// one is missing or expiring.
func (c *TokenCache) Get(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Add(tokenExpirySlack).Before(c.expiresAt) {
		return c.token, nil
	}

	token, expiresAt, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}

	c.token = token
	c.expiresAt = expiresAt
	return token, nil
}

// Invalidate drops the cached token, forcing a refresh on the next read.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}
