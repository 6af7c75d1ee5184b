// Package budget persists embedding token budget counters in Redis.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/bullion/internal/db"
	"github.com/kailas-cloud/bullion/internal/domain"
)

// store is the consumer interface for budget operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Default counter lifetimes: a window plus slack for late reads.
const (
	DefaultDailyTTL   = 48 * time.Hour
	DefaultMonthlyTTL = 62 * 24 * time.Hour
)

// Store keeps one counter per provider and window:
// bullion:budget:{provider}:{daily|monthly}:{label}.
type Store struct {
	store      store
	dailyTTL   time.Duration
	monthlyTTL time.Duration
}

// New creates a budget store. Non-positive TTLs fall back to the defaults.
func New(s store, dailyTTL, monthlyTTL time.Duration) *Store {
	if dailyTTL <= 0 {
		dailyTTL = DefaultDailyTTL
	}
	if monthlyTTL <= 0 {
		monthlyTTL = DefaultMonthlyTTL
	}
	return &Store{store: s, dailyTTL: dailyTTL, monthlyTTL: monthlyTTL}
}

// Key returns the counter key for the window containing at.
func Key(provider string, period domain.BudgetPeriod, at time.Time) string {
	return domain.KeyPrefix + "budget:" + provider + ":" + string(period) + ":" + period.Label(at)
}

// Add increments the window counter and sets its TTL once (EXPIRE NX).
func (s *Store) Add(ctx context.Context, provider string, period domain.BudgetPeriod, at time.Time, tokens int64) error {
	key := Key(provider, period, at)
	if err := s.store.IncrBy(ctx, key, tokens); err != nil {
		return fmt.Errorf("budget incr %s: %w", key, err)
	}
	if err := s.store.Expire(ctx, key, s.ttl(period), true); err != nil {
		return fmt.Errorf("budget expire %s: %w", key, err)
	}
	return nil
}

// Load returns the window counter, 0 when it does not exist yet.
func (s *Store) Load(ctx context.Context, provider string, period domain.BudgetPeriod, at time.Time) (int64, error) {
	key := Key(provider, period, at)
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("budget get %s: %w", key, err)
	}

	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget get %s parse: %w", key, err)
	}
	return val, nil
}

func (s *Store) ttl(period domain.BudgetPeriod) time.Duration {
	if period == domain.BudgetDaily {
		return s.dailyTTL
	}
	return s.monthlyTTL
}
