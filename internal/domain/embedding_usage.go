package domain

import "context"

type embeddingUsageKey struct{}

// EmbeddingUsage collects embedding activity for a single HTTP request.
// The handler puts a mutable pointer into the context before calling the service;
// the embedder chain writes to it; the handler reads it for response headers.
type EmbeddingUsage struct {
	TotalTokens int
	Used        bool // true if embedding was requested, even on a cache hit with 0 tokens
	CacheHit    bool
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records consumed tokens. Safe on a nil receiver.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u != nil {
		u.TotalTokens += n
		u.Used = true
	}
}

// MarkCacheHit records that the embedding was served from cache. Safe on a nil receiver.
func (u *EmbeddingUsage) MarkCacheHit() {
	if u != nil {
		u.CacheHit = true
		u.Used = true
	}
}
