package usage

import "github.com/kailas-cloud/bullion/internal/domain"

// BudgetReader provides read-only access to token budget state.
type BudgetReader interface {
	Usage(period domain.BudgetPeriod) (limit, used int64)
}
