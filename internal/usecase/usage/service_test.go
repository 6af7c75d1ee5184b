package usage

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/bullion/internal/domain"
)

type mockBudgetReader struct {
	daily, monthly [2]int64 // limit, used
	calls          []domain.BudgetPeriod
}

func (m *mockBudgetReader) Usage(p domain.BudgetPeriod) (int64, int64) {
	m.calls = append(m.calls, p)
	if p == domain.BudgetDaily {
		return m.daily[0], m.daily[1]
	}
	return m.monthly[0], m.monthly[1]
}

func newTestService(br BudgetReader) *Service {
	s := New(br)
	s.now = func() time.Time { return time.Date(2026, 2, 14, 15, 30, 0, 0, time.UTC) }
	return s
}

func TestGetReport_DailyPeriod(t *testing.T) {
	br := &mockBudgetReader{daily: [2]int64{10000, 3000}, monthly: [2]int64{100000, 50000}}
	r := newTestService(br).GetReport(context.Background(), domain.BudgetDaily)

	if r.Period != domain.BudgetDaily {
		t.Errorf("period = %q", r.Period)
	}
	if !r.Start.Equal(time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", r.Start)
	}
	if !r.End.Equal(time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v", r.End)
	}
	if r.Limit != 10000 || r.Used != 3000 || r.Remaining != 7000 {
		t.Errorf("limit/used/remaining = %d/%d/%d", r.Limit, r.Used, r.Remaining)
	}
	if r.Exhausted {
		t.Error("budget should not be exhausted")
	}
	if len(br.calls) != 1 || br.calls[0] != domain.BudgetDaily {
		t.Errorf("calls = %v", br.calls)
	}
}

func TestGetReport_MonthlyPeriod(t *testing.T) {
	br := &mockBudgetReader{monthly: [2]int64{100000, 50000}}
	r := newTestService(br).GetReport(context.Background(), domain.BudgetMonthly)

	if !r.Start.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", r.Start)
	}
	if !r.End.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v", r.End)
	}
	if r.Remaining != 50000 {
		t.Errorf("remaining = %d", r.Remaining)
	}
}

func TestGetReport_Exhausted(t *testing.T) {
	br := &mockBudgetReader{daily: [2]int64{100, 150}}
	r := newTestService(br).GetReport(context.Background(), domain.BudgetDaily)

	if !r.Exhausted {
		t.Error("expected exhausted")
	}
	if r.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", r.Remaining)
	}
}

func TestGetReport_UnlimitedLimit(t *testing.T) {
	br := &mockBudgetReader{monthly: [2]int64{0, 1234}}
	r := newTestService(br).GetReport(context.Background(), domain.BudgetMonthly)

	if r.Used != 1234 {
		t.Errorf("used = %d", r.Used)
	}
	if r.Remaining != -1 || r.Exhausted {
		t.Errorf("unlimited window: remaining=%d exhausted=%v", r.Remaining, r.Exhausted)
	}
}

func TestGetReport_NilReader(t *testing.T) {
	r := newTestService(nil).GetReport(context.Background(), domain.BudgetMonthly)

	if r.Limit != 0 || r.Used != 0 || r.Remaining != -1 || r.Exhausted {
		t.Errorf("nil reader report = %+v", r)
	}
	if r.Start.IsZero() || r.End.IsZero() {
		t.Error("window bounds must be set without a reader")
	}
}
