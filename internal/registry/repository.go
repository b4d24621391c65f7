package registry

import "context"

// Repository is the persistent record store for providers and routing rules.
// The engine treats it as an external get/upsert store; reads happen at
// startup and on worker-triggered refreshes, health writes happen
// asynchronously off the request path.
type Repository interface {
	// ListProviders returns every registered provider record.
	ListProviders(ctx context.Context) ([]Provider, error)

	// UpsertProvider creates or replaces a provider record.
	UpsertProvider(ctx context.Context, p Provider) error

	// UpdateHealth writes the mutable health fields for one provider.
	// Last-write-wins semantics are acceptable.
	UpdateHealth(ctx context.Context, p Provider) error

	// ListRules returns every routing rule.
	ListRules(ctx context.Context) ([]RoutingRule, error)
}
