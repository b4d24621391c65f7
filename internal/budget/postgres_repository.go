package budget

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL budget repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// LoadCounters retrieves persisted call counts for the given windows.
func (r *PostgresRepository) LoadCounters(ctx context.Context, day, month string) (int64, int64, error) {
	var daily, monthly int64

	err := r.pool.QueryRow(ctx,
		`SELECT calls FROM budget_counters WHERE window = 'day' AND key = $1`, day,
	).Scan(&daily)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT calls FROM budget_counters WHERE window = 'month' AND key = $1`, month,
	).Scan(&monthly)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, err
	}

	return daily, monthly, nil
}

// SaveCounters upserts the call counts for the given windows.
func (r *PostgresRepository) SaveCounters(ctx context.Context, day, month string, daily, monthly int64) error {
	query := `
		INSERT INTO budget_counters (window, key, calls, updated_at)
		VALUES ('day', $1, $2, $5), ('month', $3, $4, $5)
		ON CONFLICT (window, key) DO UPDATE SET
			calls = EXCLUDED.calls,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query, day, daily, month, monthly, time.Now())
	return err
}
