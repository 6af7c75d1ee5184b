package domain

import (
	"errors"
	"testing"
	"time"
)

func TestBudgetPeriod_Bucket(t *testing.T) {
	ts := time.Date(2026, 3, 17, 15, 4, 5, 0, time.UTC)

	if got := BudgetDaily.Bucket(ts); !got.Equal(time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("daily bucket = %v", got)
	}
	if got := BudgetMonthly.Bucket(ts); !got.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("monthly bucket = %v", got)
	}
}

func TestBudgetPeriod_Label(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC.
	ts := time.Date(2026, 1, 31, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))

	if got := BudgetDaily.Label(ts); got != "2026-02-01" {
		t.Errorf("daily label = %q", got)
	}
	if got := BudgetMonthly.Label(ts); got != "2026-02" {
		t.Errorf("monthly label = %q", got)
	}
}

func TestBudgetPeriod_End(t *testing.T) {
	ts := time.Date(2026, 12, 31, 10, 0, 0, 0, time.UTC)

	if got := BudgetDaily.End(ts); !got.Equal(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("daily end = %v", got)
	}
	if got := BudgetMonthly.End(ts); !got.Equal(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("monthly end = %v", got)
	}
}

func TestParseBudgetPeriod(t *testing.T) {
	tests := map[string]BudgetPeriod{
		"day":     BudgetDaily,
		"daily":   BudgetDaily,
		"month":   BudgetMonthly,
		"monthly": BudgetMonthly,
		"":        BudgetMonthly,
	}
	for in, want := range tests {
		got, err := ParseBudgetPeriod(in)
		if err != nil || got != want {
			t.Errorf("ParseBudgetPeriod(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseBudgetPeriod("week"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for week, got %v", err)
	}
}
