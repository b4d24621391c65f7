package budget

import "context"

// Repository persists budget counters across restarts.
type Repository interface {
	// LoadCounters returns the persisted call counts for the given UTC day
	// and month keys, zero when no row exists.
	LoadCounters(ctx context.Context, day, month string) (daily, monthly int64, err error)

	// SaveCounters upserts the call counts for the given windows.
	SaveCounters(ctx context.Context, day, month string, daily, monthly int64) error
}
