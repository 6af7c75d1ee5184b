package embedding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bullion/internal/domain"
)

func newTracker(daily, monthly int64, action BudgetAction) *BudgetTracker {
	return NewBudgetTracker("test", BudgetLimits{Daily: daily, Monthly: monthly}, action, zap.NewNop())
}

func TestBudgetTracker_RejectWhenExceeded(t *testing.T) {
	bt := newTracker(100, 0, BudgetActionReject)
	bt.Record(100)

	if err := bt.Check(context.Background()); !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected ErrEmbeddingQuotaExceeded, got %v", err)
	}
}

func TestBudgetTracker_WarnWhenExceeded(t *testing.T) {
	bt := newTracker(100, 0, BudgetActionWarn)
	bt.Record(200)

	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("warn action must allow the request, got %v", err)
	}
}

func TestBudgetTracker_MonthlyReject(t *testing.T) {
	bt := newTracker(0, 500, BudgetActionReject)
	bt.Record(500)

	if err := bt.Check(context.Background()); !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected ErrEmbeddingQuotaExceeded for monthly limit, got %v", err)
	}
}

func TestBudgetTracker_UnlimitedWhenZero(t *testing.T) {
	bt := newTracker(0, 0, BudgetActionReject)
	bt.Record(999_999_999)

	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected nil for unlimited budget, got %v", err)
	}
	if bt.RemainingDaily() != -1 || bt.RemainingMonthly() != -1 {
		t.Errorf("remaining = %d/%d, want -1/-1", bt.RemainingDaily(), bt.RemainingMonthly())
	}
}

func TestBudgetTracker_Remaining(t *testing.T) {
	bt := newTracker(1000, 10000, BudgetActionWarn)
	bt.Record(300)

	if got := bt.RemainingDaily(); got != 700 {
		t.Errorf("daily remaining = %d, want 700", got)
	}
	if got := bt.RemainingMonthly(); got != 9700 {
		t.Errorf("monthly remaining = %d, want 9700", got)
	}

	bt.Record(5000)
	if got := bt.RemainingDaily(); got != 0 {
		t.Errorf("overspent daily remaining = %d, want 0", got)
	}
}

func TestBudgetTracker_DayRollover(t *testing.T) {
	now := time.Date(2026, 5, 10, 23, 59, 0, 0, time.UTC)
	bt := newTracker(100, 1000, BudgetActionReject).WithClock(func() time.Time { return now })

	bt.Record(100)
	if err := bt.Check(context.Background()); err == nil {
		t.Fatal("expected daily budget to be exhausted")
	}

	now = now.Add(2 * time.Minute)
	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("new day must reset the daily window, got %v", err)
	}
	if got := bt.RemainingMonthly(); got != 900 {
		t.Errorf("monthly window must survive the day rollover, remaining = %d", got)
	}
}

func TestBudgetTracker_MonthRollover(t *testing.T) {
	now := time.Date(2026, 5, 31, 12, 0, 0, 0, time.UTC)
	bt := newTracker(0, 100, BudgetActionReject).WithClock(func() time.Time { return now })

	bt.Record(100)
	now = time.Date(2026, 6, 1, 0, 0, 1, 0, time.UTC)

	if got := bt.RemainingMonthly(); got != 100 {
		t.Errorf("remaining after month rollover = %d, want 100", got)
	}
}

// --- Mock BudgetStore ---

type storeKey struct {
	period domain.BudgetPeriod
	label  string
}

type mockBudgetStore struct {
	mu      sync.Mutex
	data    map[storeKey]int64
	loadErr error
	addErr  error
}

func newMockBudgetStore() *mockBudgetStore {
	return &mockBudgetStore{data: make(map[storeKey]int64)}
}

func (m *mockBudgetStore) Add(_ context.Context, _ string, p domain.BudgetPeriod, at time.Time, tokens int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addErr != nil {
		return m.addErr
	}
	m.data[storeKey{p, p.Label(at)}] += tokens
	return nil
}

func (m *mockBudgetStore) Load(_ context.Context, _ string, p domain.BudgetPeriod, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return 0, m.loadErr
	}
	return m.data[storeKey{p, p.Label(at)}], nil
}

func (m *mockBudgetStore) get(p domain.BudgetPeriod, at time.Time) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[storeKey{p, p.Label(at)}]
}

// --- Persistence tests ---

func TestBudgetTracker_WithStore_LoadsValues(t *testing.T) {
	now := time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)
	store := newMockBudgetStore()
	store.data[storeKey{domain.BudgetDaily, "2026-02-14"}] = 300
	store.data[storeKey{domain.BudgetMonthly, "2026-02"}] = 5000

	bt := newTracker(1000, 10000, BudgetActionReject).
		WithClock(func() time.Time { return now }).
		WithStore(context.Background(), store)

	if got := bt.RemainingDaily(); got != 700 {
		t.Errorf("daily remaining = %d, want 700", got)
	}
	if got := bt.RemainingMonthly(); got != 5000 {
		t.Errorf("monthly remaining = %d, want 5000", got)
	}
}

func TestBudgetTracker_Record_PersistsToStore(t *testing.T) {
	now := time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)
	store := newMockBudgetStore()
	bt := newTracker(10000, 100000, BudgetActionWarn).
		WithClock(func() time.Time { return now }).
		WithStore(context.Background(), store)

	bt.Record(100)
	bt.Record(200)
	bt.Record(300)

	if got := store.get(domain.BudgetDaily, now); got != 600 {
		t.Errorf("store daily = %d, want 600", got)
	}
	if got := store.get(domain.BudgetMonthly, now); got != 600 {
		t.Errorf("store monthly = %d, want 600", got)
	}
}

func TestBudgetTracker_WithStore_LoadError(t *testing.T) {
	store := newMockBudgetStore()
	store.loadErr = errors.New("connection refused")

	bt := newTracker(1000, 10000, BudgetActionReject).WithStore(context.Background(), store)

	if got := bt.RemainingDaily(); got != 1000 {
		t.Errorf("load error must start from zero, daily remaining = %d", got)
	}
}

func TestBudgetTracker_Record_StoreWriteError(t *testing.T) {
	store := newMockBudgetStore()
	bt := newTracker(1000, 10000, BudgetActionWarn).WithStore(context.Background(), store)

	store.mu.Lock()
	store.addErr = errors.New("write timeout")
	store.mu.Unlock()

	bt.Record(50)

	if got := bt.RemainingDaily(); got != 950 {
		t.Errorf("in-memory counter must update despite store errors, remaining = %d", got)
	}
}

func TestBudgetTracker_CheckIsInMemory(t *testing.T) {
	store := newMockBudgetStore()
	bt := newTracker(100, 0, BudgetActionReject).WithStore(context.Background(), store)
	bt.Record(100)

	store.mu.Lock()
	store.loadErr = errors.New("store down")
	store.mu.Unlock()

	if err := bt.Check(context.Background()); !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected ErrEmbeddingQuotaExceeded, got %v", err)
	}
}

func TestBudgetTracker_Usage(t *testing.T) {
	now := time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)
	bt := newTracker(100, 1000, BudgetActionReject).WithClock(func() time.Time { return now })
	bt.Record(40)

	if limit, used := bt.Usage(domain.BudgetDaily); limit != 100 || used != 40 {
		t.Errorf("daily usage = %d/%d, want 100/40", used, limit)
	}

	now = now.Add(2 * time.Hour)
	if _, used := bt.Usage(domain.BudgetDaily); used != 0 {
		t.Errorf("daily usage after rollover = %d, want 0", used)
	}
	if _, used := bt.Usage(domain.BudgetMonthly); used != 0 {
		t.Errorf("monthly usage after month rollover = %d, want 0", used)
	}
}
