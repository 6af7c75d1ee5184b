// Package usage reports embedding token consumption against the configured budget.
package usage

import (
	"context"
	"time"

	"github.com/kailas-cloud/bullion/internal/domain"
)

// Report is a point-in-time view of one budget window.
type Report struct {
	Period domain.BudgetPeriod
	Start  time.Time
	End    time.Time
	Limit  int64 // 0 = unlimited
	Used   int64
	// Remaining is -1 when the window is unlimited.
	Remaining int64
	Exhausted bool
}

// Service handles usage reporting.
type Service struct {
	br  BudgetReader
	now func() time.Time
}

// New creates a Service. br can be nil (unlimited mode).
func New(br BudgetReader) *Service {
	return &Service{br: br, now: time.Now}
}

// GetReport builds a usage report for the given period.
func (s *Service) GetReport(_ context.Context, period domain.BudgetPeriod) Report {
	now := s.now().UTC()
	r := Report{
		Period:    period,
		Start:     period.Bucket(now),
		End:       period.End(now),
		Remaining: -1,
	}
	if s.br == nil {
		return r
	}

	r.Limit, r.Used = s.br.Usage(period)
	if r.Limit > 0 {
		r.Remaining = max(r.Limit-r.Used, 0)
		r.Exhausted = r.Remaining == 0
	}
	return r
}
