package request

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/bullion/internal/domain"
	"github.com/kailas-cloud/bullion/internal/domain/search/filter"
	"github.com/kailas-cloud/bullion/internal/domain/search/strategy"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length in bytes.
	MaxQueryLength  = 4096
	DefaultLimit    = 5
	DefaultMaxLimit = 100
)

// Request is a validated search query.
type Request struct {
	query    string
	strategy strategy.Strategy
	filters  filter.Filters
	limit    int
}

// New validates and normalizes search parameters.
// A nil limit means DefaultLimit; a limit above maxLimit is clamped.
// maxLimit <= 0 falls back to DefaultMaxLimit.
func New(
	query string,
	s strategy.Strategy,
	filters filter.Filters,
	limit *int,
	maxLimit int,
) (Request, error) {
	if strings.TrimSpace(query) == "" {
		return Request{}, fmt.Errorf("%w: query is required", domain.ErrValidation)
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d bytes)", domain.ErrValidation, MaxQueryLength)
	}
	if !s.IsValid() {
		return Request{}, fmt.Errorf("%w: invalid search strategy %q", domain.ErrValidation, s)
	}
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}

	n := DefaultLimit
	if limit != nil {
		n = *limit
	}
	if n < 0 {
		return Request{}, fmt.Errorf("%w: limit must not be negative", domain.ErrValidation)
	}
	if n > maxLimit {
		n = maxLimit
	}

	return Request{
		query:    query,
		strategy: s,
		filters:  filters,
		limit:    n,
	}, nil
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// Strategy returns the selected retrieval strategy.
func (r *Request) Strategy() strategy.Strategy { return r.strategy }

// Filters returns the structured filters.
func (r *Request) Filters() filter.Filters { return r.filters }

// Limit returns the maximum number of results. Zero means an empty result.
func (r *Request) Limit() int { return r.limit }
