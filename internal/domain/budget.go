package domain

import (
	"fmt"
	"time"
)

// BudgetPeriod is a token budget accounting window.
type BudgetPeriod string

// Budget periods.
const (
	BudgetDaily   BudgetPeriod = "daily"
	BudgetMonthly BudgetPeriod = "monthly"
)

// Bucket truncates t (UTC) to the start of the window containing it.
func (p BudgetPeriod) Bucket(t time.Time) time.Time {
	t = t.UTC()
	if p == BudgetDaily {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Label formats the bucket containing t: 2006-01-02 for daily, 2006-01 for monthly.
func (p BudgetPeriod) Label(t time.Time) string {
	if p == BudgetDaily {
		return t.UTC().Format("2006-01-02")
	}
	return t.UTC().Format("2006-01")
}

// End returns the exclusive end of the window containing t.
func (p BudgetPeriod) End(t time.Time) time.Time {
	start := p.Bucket(t)
	if p == BudgetDaily {
		return start.AddDate(0, 0, 1)
	}
	return start.AddDate(0, 1, 0)
}

// ParseBudgetPeriod converts caller input into a BudgetPeriod.
// Accepts the short forms day and month.
func ParseBudgetPeriod(s string) (BudgetPeriod, error) {
	switch s {
	case "daily", "day":
		return BudgetDaily, nil
	case "", "monthly", "month":
		return BudgetMonthly, nil
	}
	return "", fmt.Errorf("%w: period must be day or month, got %q", ErrValidation, s)
}
