package strategy

import (
	"fmt"

	"github.com/kailas-cloud/bullion/internal/domain"
)

// Strategy is the retrieval algorithm selected by the caller.
type Strategy string

// Strategy constants. The values double as the searchType tag in responses.
const (
	// Text ranks by full-text relevance with a substring fallback.
	Text Strategy = "text"
	// Vector ranks by cosine similarity of query and product embeddings.
	Vector Strategy = "vector_similarity"
)

// IsValid checks if the strategy is one of the supported values.
func (s Strategy) IsValid() bool {
	return s == Text || s == Vector
}

// NeedsEmbedding reports whether the strategy calls the embedding provider.
func (s Strategy) NeedsEmbedding() bool {
	return s == Vector
}

// Parse converts a wire value into a Strategy.
func Parse(s string) (Strategy, error) {
	st := Strategy(s)
	if !st.IsValid() {
		return "", fmt.Errorf("%w: unknown search strategy %q", domain.ErrValidation, s)
	}
	return st, nil
}
