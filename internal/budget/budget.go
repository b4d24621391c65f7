// Package budget enforces daily and monthly supplier call ceilings and
// degrades selection to cheap providers before cutting off entirely.
package budget

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Defaults. Ceilings of zero mean unlimited.
const (
	DefaultDailyLimit   = 50000
	DefaultMonthlyLimit = 1000000

	// defaultWarnRatio is the consumed fraction at which responses start
	// carrying a budget warning.
	defaultWarnRatio = 0.8

	// defaultCheapRatio is the consumed fraction at which selection drops
	// to cheap providers only.
	defaultCheapRatio = 0.95

	defaultFlushInterval = 30 * time.Second
)

// Usage is a point-in-time snapshot of budget consumption.
type Usage struct {
	Day          string  `json:"day"`
	Month        string  `json:"month"`
	DailyCalls   int64   `json:"dailyCalls"`
	MonthlyCalls int64   `json:"monthlyCalls"`
	DailyLimit   int64   `json:"dailyLimit"`
	MonthlyLimit int64   `json:"monthlyLimit"`
	DailyRatio   float64 `json:"dailyRatio"`
	MonthlyRatio float64 `json:"monthlyRatio"`
}

// Config holds configuration for the tracker.
type Config struct {
	Repository Repository
	Logger     zerolog.Logger

	// DailyLimit and MonthlyLimit are call ceilings; zero disables the
	// corresponding ceiling.
	DailyLimit   int64
	MonthlyLimit int64

	// WarnRatio and CheapRatio override the degradation thresholds.
	WarnRatio  float64
	CheapRatio float64

	// FlushInterval is how often counters are persisted (default 30s).
	FlushInterval time.Duration
}

// Tracker counts supplier calls against UTC day and month windows. Counting
// is in-memory and synchronous; persistence is periodic and best-effort so a
// slow database never sits on the search path.
type Tracker struct {
	repo          Repository
	logger        zerolog.Logger
	dailyLimit    int64
	monthlyLimit  int64
	warnRatio     float64
	cheapRatio    float64
	flushInterval time.Duration

	mu           sync.Mutex
	day          string
	month        string
	dailyCalls   int64
	monthlyCalls int64
	dirty        bool
}

// NewTracker creates a tracker. Counters for the current windows are loaded
// from the repository so restarts do not reset the budget.
func NewTracker(ctx context.Context, cfg Config) (*Tracker, error) {
	if cfg.WarnRatio == 0 {
		cfg.WarnRatio = defaultWarnRatio
	}
	if cfg.CheapRatio == 0 {
		cfg.CheapRatio = defaultCheapRatio
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = defaultFlushInterval
	}

	t := &Tracker{
		repo:          cfg.Repository,
		logger:        cfg.Logger,
		dailyLimit:    cfg.DailyLimit,
		monthlyLimit:  cfg.MonthlyLimit,
		warnRatio:     cfg.WarnRatio,
		cheapRatio:    cfg.CheapRatio,
		flushInterval: cfg.FlushInterval,
	}

	now := time.Now().UTC()
	t.day = dayKey(now)
	t.month = monthKey(now)

	if t.repo != nil {
		daily, monthly, err := t.repo.LoadCounters(ctx, t.day, t.month)
		if err != nil {
			return nil, err
		}
		t.dailyCalls = daily
		t.monthlyCalls = monthly
	}

	return t, nil
}

// Record adds n supplier calls to the current windows.
func (t *Tracker) Record(n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollLocked(time.Now().UTC())
	t.dailyCalls += int64(n)
	t.monthlyCalls += int64(n)
	t.dirty = true
}

// Exhausted reports whether either ceiling has been reached. Searches still
// run when exhausted, but only against cached data and cheap providers.
func (t *Tracker) Exhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollLocked(time.Now().UTC())
	return t.overLocked(1.0)
}

// CheapOnly reports whether consumption has crossed the degradation
// threshold and selection should restrict to low-cost providers.
func (t *Tracker) CheapOnly() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollLocked(time.Now().UTC())
	return t.overLocked(t.cheapRatio)
}

// Warning reports whether consumption has crossed the alert threshold.
func (t *Tracker) Warning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollLocked(time.Now().UTC())
	return t.overLocked(t.warnRatio)
}

// Snapshot returns current consumption for observability endpoints.
func (t *Tracker) Snapshot() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollLocked(time.Now().UTC())

	u := Usage{
		Day:          t.day,
		Month:        t.month,
		DailyCalls:   t.dailyCalls,
		MonthlyCalls: t.monthlyCalls,
		DailyLimit:   t.dailyLimit,
		MonthlyLimit: t.monthlyLimit,
	}
	if t.dailyLimit > 0 {
		u.DailyRatio = float64(t.dailyCalls) / float64(t.dailyLimit)
	}
	if t.monthlyLimit > 0 {
		u.MonthlyRatio = float64(t.monthlyCalls) / float64(t.monthlyLimit)
	}
	return u
}

// Reset zeroes the current windows. Used by the operational reset job.
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	t.dailyCalls = 0
	t.monthlyCalls = 0
	t.dirty = false
	day, month := t.day, t.month
	t.mu.Unlock()

	if t.repo == nil {
		return nil
	}
	return t.repo.SaveCounters(ctx, day, month, 0, 0)
}

// Run periodically persists counters until the context is cancelled. A final
// flush happens on shutdown.
func (t *Tracker) Run(ctx context.Context) {
	if t.repo == nil {
		return
	}

	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.flush(context.Background())
			return
		case <-ticker.C:
			t.flush(ctx)
		}
	}
}

func (t *Tracker) flush(ctx context.Context) {
	t.mu.Lock()
	if !t.dirty {
		t.mu.Unlock()
		return
	}
	day, month := t.day, t.month
	daily, monthly := t.dailyCalls, t.monthlyCalls
	t.dirty = false
	t.mu.Unlock()

	if err := t.repo.SaveCounters(ctx, day, month, daily, monthly); err != nil {
		t.logger.Error().Err(err).Msg("failed to persist budget counters")
		t.mu.Lock()
		t.dirty = true
		t.mu.Unlock()
	}
}

// rollLocked switches to new windows when the UTC day or month turns over.
// Caller holds the lock.
func (t *Tracker) rollLocked(now time.Time) {
	if day := dayKey(now); day != t.day {
		t.logger.Info().Str("day", day).Int64("previous_calls", t.dailyCalls).Msg("daily budget window rolled over")
		t.day = day
		t.dailyCalls = 0
		t.dirty = true
	}
	if month := monthKey(now); month != t.month {
		t.month = month
		t.monthlyCalls = 0
		t.dirty = true
	}
}

func (t *Tracker) overLocked(ratio float64) bool {
	if t.dailyLimit > 0 && float64(t.dailyCalls) >= float64(t.dailyLimit)*ratio {
		return true
	}
	if t.monthlyLimit > 0 && float64(t.monthlyCalls) >= float64(t.monthlyLimit)*ratio {
		return true
	}
	return false
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func monthKey(t time.Time) string {
	return t.Format("2006-01")
}
