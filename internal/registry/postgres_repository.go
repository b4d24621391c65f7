package registry

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tripweave/tripweave/internal/search"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL provider repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// ListProviders retrieves all registered provider records.
func (r *PostgresRepository) ListProviders(ctx context.Context) ([]Provider, error) {
	query := `
		SELECT code, name, categories, strong_regions, coverage_regions,
		       priority, cost_per_call, enabled,
		       health_score, avg_latency_ms, consecutive_failures, updated_at
		FROM providers
		ORDER BY code
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var providers []Provider
	for rows.Next() {
		var (
			p          Provider
			categories []string
		)

		err := rows.Scan(
			&p.Code,
			&p.Name,
			&categories,
			&p.StrongRegions,
			&p.CoverageRegions,
			&p.Priority,
			&p.CostPerCall,
			&p.Enabled,
			&p.HealthScore,
			&p.AvgLatencyMS,
			&p.ConsecutiveFailures,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		p.Categories = make([]search.Category, 0, len(categories))
		for _, c := range categories {
			p.Categories = append(p.Categories, search.Category(c))
		}
		providers = append(providers, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return providers, nil
}

// UpsertProvider creates or replaces a provider record.
func (r *PostgresRepository) UpsertProvider(ctx context.Context, p Provider) error {
	query := `
		INSERT INTO providers (
			code, name, categories, strong_regions, coverage_regions,
			priority, cost_per_call, enabled,
			health_score, avg_latency_ms, consecutive_failures, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			categories = EXCLUDED.categories,
			strong_regions = EXCLUDED.strong_regions,
			coverage_regions = EXCLUDED.coverage_regions,
			priority = EXCLUDED.priority,
			cost_per_call = EXCLUDED.cost_per_call,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at
	`

	categories := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		categories = append(categories, string(c))
	}

	_, err := r.pool.Exec(ctx, query,
		p.Code, p.Name, categories, p.StrongRegions, p.CoverageRegions,
		p.Priority, p.CostPerCall, p.Enabled,
		p.HealthScore, p.AvgLatencyMS, p.ConsecutiveFailures, time.Now(),
	)
	return err
}

// UpdateHealth writes only the mutable health fields for one provider.
func (r *PostgresRepository) UpdateHealth(ctx context.Context, p Provider) error {
	query := `
		UPDATE providers
		SET health_score = $2,
		    avg_latency_ms = $3,
		    consecutive_failures = $4,
		    updated_at = $5
		WHERE code = $1
	`

	_, err := r.pool.Exec(ctx, query,
		p.Code, p.HealthScore, p.AvgLatencyMS, p.ConsecutiveFailures, time.Now(),
	)
	return err
}

// ListRules retrieves all routing rules.
func (r *PostgresRepository) ListRules(ctx context.Context) ([]RoutingRule, error) {
	query := `
		SELECT id, category, region, provider, boost, description
		FROM routing_rules
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []RoutingRule
	for rows.Next() {
		var (
			rule     RoutingRule
			category string
		)

		err := rows.Scan(
			&rule.ID,
			&category,
			&rule.Region,
			&rule.Provider,
			&rule.Boost,
			&rule.Description,
		)
		if err != nil {
			return nil, err
		}

		rule.Category = search.Category(category)
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rules, nil
}
