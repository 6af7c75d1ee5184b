// Package search is the product search facade: it selects a strategy, enforces
// the result ceiling and ranks the strategy output.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bullion/internal/domain"
	"github.com/kailas-cloud/bullion/internal/domain/search/filter"
	"github.com/kailas-cloud/bullion/internal/domain/search/request"
	"github.com/kailas-cloud/bullion/internal/domain/search/result"
	"github.com/kailas-cloud/bullion/internal/domain/search/strategy"
	"github.com/kailas-cloud/bullion/internal/logger"
	"github.com/kailas-cloud/bullion/internal/metrics"
)

// Config tunes the facade.
type Config struct {
	// MaxLimit is the hard ceiling on results per search.
	MaxLimit int
	// Timeout bounds one search including the embedding call. Zero disables it.
	Timeout time.Duration
	// VectorMinSimilarity drops vector hits at or below it. Zero disables the threshold.
	VectorMinSimilarity float64
	// Dimensions is the expected query embedding length. Zero disables the check.
	Dimensions int
}

// Response is the ranked outcome of one search.
type Response struct {
	Query    string
	Strategy strategy.Strategy
	Filters  filter.Filters
	Limit    int
	Results  []result.Result
}

// Total returns the number of results.
func (r *Response) Total() int { return len(r.Results) }

// Service handles product search across text and vector strategies.
type Service struct {
	strategies map[strategy.Strategy]searcher
	cfg        Config
}

// New creates a search service. A nil embed leaves only the text strategy available.
func New(repo ProductRepository, embed Embedder, cfg Config) *Service {
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = request.DefaultMaxLimit
	}
	s := &Service{
		strategies: map[strategy.Strategy]searcher{
			strategy.Text: textStrategy{repo: repo},
		},
		cfg: cfg,
	}
	if embed != nil {
		s.strategies[strategy.Vector] = vectorStrategy{
			repo:          repo,
			embed:         embed,
			dimensions:    cfg.Dimensions,
			minSimilarity: cfg.VectorMinSimilarity,
		}
	}
	return s
}

// MaxLimit returns the configured result ceiling for request.New.
func (s *Service) MaxLimit() int { return s.cfg.MaxLimit }

// Search runs the strategy named by the request. The request is already validated.
// A zero limit returns an empty response without touching any collaborator.
func (s *Service) Search(ctx context.Context, req *request.Request) (Response, error) {
	resp := Response{
		Query:    req.Query(),
		Strategy: req.Strategy(),
		Filters:  req.Filters(),
		Limit:    req.Limit(),
		Results:  []result.Result{},
	}
	if req.Limit() == 0 {
		return resp, nil
	}

	st, ok := s.strategies[req.Strategy()]
	switch {
	case !ok && req.Strategy().NeedsEmbedding():
		return Response{}, fmt.Errorf("%w: no embedder configured", domain.ErrEmbeddingUnavailable)
	case !ok:
		return Response{}, fmt.Errorf("%w: unsupported search strategy %q", domain.ErrValidation, req.Strategy())
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	results, err := st.search(ctx, req)
	s.observe(ctx, req, len(results), time.Since(start), err)
	if err != nil {
		return Response{}, err
	}

	resp.Results = rank(results, req.Filters(), req.Limit())
	return resp, nil
}

// rank drops rows that violate the filters (out of stock included) or carry a
// non-finite score, then orders by score desc and price asc. The sort is stable so the store's own tie-break
// survives, and the output never exceeds limit.
func rank(results []result.Result, f filter.Filters, limit int) []result.Result {
	results = slices.DeleteFunc(results, func(r result.Result) bool {
		p := r.Product()
		score := r.Score()
		return !f.Matches(&p) || math.IsNaN(score) || math.IsInf(score, 0)
	})
	if results == nil {
		return []result.Result{}
	}
	slices.SortStableFunc(results, func(a, b result.Result) int {
		switch {
		case result.Less(&a, &b):
			return -1
		case result.Less(&b, &a):
			return 1
		}
		return 0
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (s *Service) observe(ctx context.Context, req *request.Request, n int, d time.Duration, err error) {
	label := string(req.Strategy())
	status := metrics.StatusOK
	switch {
	case err == nil:
	case domain.IsClientError(err) && !errors.Is(err, domain.ErrEmbeddingUnavailable):
		status = metrics.StatusClientError
	default:
		status = metrics.StatusError
	}

	metrics.SearchRequestsTotal.WithLabelValues(label, status).Inc()
	metrics.SearchDuration.WithLabelValues(label).Observe(d.Seconds())
	if err == nil {
		metrics.SearchResults.WithLabelValues(label).Observe(float64(n))
	}

	log := logger.FromContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("Search failed",
			zap.String("strategy", label),
			zap.Duration("duration", d),
			zap.Error(err),
		)
		return
	}
	log.Debug("Search completed",
		zap.String("strategy", label),
		zap.Int("limit", req.Limit()),
		zap.Bool("filtered", !req.Filters().IsEmpty()),
		zap.Int("results", n),
		zap.Duration("duration", d),
	)
}
