package search

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/bullion/internal/domain"
	"github.com/kailas-cloud/bullion/internal/domain/search/request"
	"github.com/kailas-cloud/bullion/internal/domain/search/result"
)

// searcher is one retrieval strategy.
type searcher interface {
	search(ctx context.Context, req *request.Request) ([]result.Result, error)
}

// textStrategy ranks by full-text relevance with a literal substring fallback.
type textStrategy struct {
	repo ProductRepository
}

func (s textStrategy) search(ctx context.Context, req *request.Request) ([]result.Result, error) {
	results, err := s.repo.SearchText(ctx, req.Query(), req.Filters(), req.Limit())
	if err != nil {
		return nil, fmt.Errorf("search text: %w", err)
	}
	return results, nil
}

// vectorStrategy embeds the query and ranks by cosine similarity.
// There is no text fallback: an embedding failure fails the search.
type vectorStrategy struct {
	repo          ProductRepository
	embed         Embedder
	dimensions    int
	minSimilarity float64
}

func (s vectorStrategy) search(ctx context.Context, req *request.Request) ([]result.Result, error) {
	emb, err := s.embed.Embed(ctx, req.Query())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	domain.UsageFromContext(ctx).AddTokens(emb.TotalTokens)

	if err := domain.CheckDimensions(emb.Embedding, s.dimensions); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if err := domain.CheckNorm(emb.Embedding); err != nil {
		return nil, fmt.Errorf("%w: query %w", domain.ErrEmbeddingUnavailable, err)
	}

	results, err := s.repo.SearchVector(ctx, emb.Embedding, req.Filters(), req.Limit(), s.minSimilarity)
	if err != nil {
		return nil, fmt.Errorf("search vector: %w", err)
	}
	return results, nil
}
