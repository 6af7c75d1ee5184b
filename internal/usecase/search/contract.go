package search

import (
	"context"

	"github.com/kailas-cloud/bullion/internal/domain"
	"github.com/kailas-cloud/bullion/internal/domain/search/filter"
	"github.com/kailas-cloud/bullion/internal/domain/search/result"
)

// ProductRepository defines the storage contract for product ranking.
type ProductRepository interface {
	SearchText(ctx context.Context, query string, f filter.Filters, limit int) ([]result.Result, error)
	SearchVector(
		ctx context.Context, vec []float32, f filter.Filters, limit int, minSimilarity float64,
	) ([]result.Result, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
