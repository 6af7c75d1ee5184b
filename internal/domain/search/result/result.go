package result

import (
	"github.com/kailas-cloud/bullion/internal/domain/product"
	"github.com/kailas-cloud/bullion/internal/domain/search/strategy"
)

// Result is a single ranked product hit.
// The score is ts_rank relevance for text hits and cosine similarity for vector hits.
type Result struct {
	product  product.Product
	score    float64
	strategy strategy.Strategy
}

// New creates a search result.
func New(p product.Product, score float64, s strategy.Strategy) Result {
	return Result{product: p, score: score, strategy: s}
}

// Product returns the product projection.
func (r *Result) Product() product.Product { return r.product }

// Score returns the strategy-specific score.
func (r *Result) Score() float64 { return r.score }

// Strategy returns the strategy that produced the score.
func (r *Result) Strategy() strategy.Strategy { return r.strategy }

// RelevanceScore returns the text score, or nil for vector hits.
func (r *Result) RelevanceScore() *float64 {
	if r.strategy != strategy.Text {
		return nil
	}
	s := r.score
	return &s
}

// SimilarityScore returns the vector score, or nil for text hits.
func (r *Result) SimilarityScore() *float64 {
	if r.strategy != strategy.Vector {
		return nil
	}
	s := r.score
	return &s
}

// Less orders results by score descending, then price ascending.
func Less(a, b *Result) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.product.Price < b.product.Price
}
