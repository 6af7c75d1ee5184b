package embedding

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bullion/internal/domain"
)

// BudgetAction defines behavior when token budget is exceeded.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the request.
	BudgetActionReject BudgetAction = "reject"
)

// BudgetStore persists per-window token counters.
// The store owns key layout and expiry; the tracker only names the window.
type BudgetStore interface {
	Add(ctx context.Context, provider string, period domain.BudgetPeriod, at time.Time, tokens int64) error
	Load(ctx context.Context, provider string, period domain.BudgetPeriod, at time.Time) (int64, error)
}

// BudgetLimits caps token consumption per window. Zero means unlimited.
type BudgetLimits struct {
	Daily   int64
	Monthly int64
}

// counter is one accounting window held in memory.
type counter struct {
	period domain.BudgetPeriod
	limit  int64
	used   int64
	bucket time.Time
}

func (c *counter) roll(now time.Time) {
	if b := c.period.Bucket(now); b.After(c.bucket) {
		c.used = 0
		c.bucket = b
	}
}

func (c *counter) exceeded() bool { return c.limit > 0 && c.used >= c.limit }

func (c *counter) remaining() int64 {
	if c.limit == 0 {
		return -1
	}
	return max(c.limit-c.used, 0)
}

// BudgetTracker enforces token budgets in memory and writes increments behind to a store.
// Check never touches the store.
type BudgetTracker struct {
	mu       sync.Mutex
	daily    counter
	monthly  counter
	action   BudgetAction
	provider string
	now      func() time.Time
	store    BudgetStore
	logger   *zap.Logger
}

// NewBudgetTracker creates a budget tracker with the given limits.
func NewBudgetTracker(provider string, limits BudgetLimits, action BudgetAction, logger *zap.Logger) *BudgetTracker {
	b := &BudgetTracker{
		daily:    counter{period: domain.BudgetDaily, limit: limits.Daily},
		monthly:  counter{period: domain.BudgetMonthly, limit: limits.Monthly},
		action:   action,
		provider: provider,
		now:      time.Now,
		logger:   logger,
	}
	now := b.now()
	b.daily.bucket = domain.BudgetDaily.Bucket(now)
	b.monthly.bucket = domain.BudgetMonthly.Bucket(now)
	return b
}

// WithClock replaces the time source. Used by tests to cross window boundaries.
func (b *BudgetTracker) WithClock(now func() time.Time) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
	t := now()
	b.daily.bucket = domain.BudgetDaily.Bucket(t)
	b.monthly.bucket = domain.BudgetMonthly.Bucket(t)
	return b
}

// WithStore attaches a persistence store and loads the current counters from it.
// Load failures are logged and the tracker starts from zero.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	now := b.now()
	for _, c := range []*counter{&b.daily, &b.monthly} {
		val, err := store.Load(ctx, b.provider, c.period, now)
		if err != nil {
			b.logger.Warn("Failed to load budget from store",
				zap.String("period", string(c.period)), zap.Error(err))
			continue
		}
		c.used = val
	}

	b.logger.Info("Budget loaded from store",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.daily.used),
		zap.Int64("monthly_used", b.monthly.used),
	)
	return b
}

// Check reports whether a new embedding request may proceed.
// With BudgetActionReject an exhausted window yields domain.ErrEmbeddingQuotaExceeded.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.daily.roll(now)
	b.monthly.roll(now)

	if !b.daily.exceeded() && !b.monthly.exceeded() {
		return nil
	}
	if b.action == BudgetActionReject {
		return domain.ErrEmbeddingQuotaExceeded
	}

	b.logger.Warn("Token budget exceeded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.daily.used),
		zap.Int64("daily_limit", b.daily.limit),
		zap.Int64("monthly_used", b.monthly.used),
		zap.Int64("monthly_limit", b.monthly.limit),
	)
	return nil
}

// Record adds consumed tokens, then persists the increment when a store is attached.
// Store writes use their own short timeout so a slow Redis never delays the caller's deadline.
func (b *BudgetTracker) Record(tokens int64) {
	b.mu.Lock()
	now := b.now()
	b.daily.roll(now)
	b.monthly.roll(now)
	b.daily.used += tokens
	b.monthly.used += tokens
	store := b.store
	b.mu.Unlock()

	if store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, p := range []domain.BudgetPeriod{domain.BudgetDaily, domain.BudgetMonthly} {
		if err := store.Add(ctx, b.provider, p, now, tokens); err != nil {
			b.logger.Warn("Failed to persist budget", zap.String("period", string(p)), zap.Error(err))
		}
	}
}

// Usage returns the limit (0 = unlimited) and tokens used in the current window of period.
func (b *BudgetTracker) Usage(period domain.BudgetPeriod) (limit, used int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := &b.monthly
	if period == domain.BudgetDaily {
		c = &b.daily
	}
	c.roll(b.now())
	return c.limit, c.used
}

// RemainingDaily returns tokens left today (-1 if unlimited).
func (b *BudgetTracker) RemainingDaily() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.daily.roll(b.now())
	return b.daily.remaining()
}

// RemainingMonthly returns tokens left this month (-1 if unlimited).
func (b *BudgetTracker) RemainingMonthly() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.monthly.roll(b.now())
	return b.monthly.remaining()
}
