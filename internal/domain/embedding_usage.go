package domain

import "context"

type embeddingUsageKey struct{}

// EmbeddingUsage collects query embedding token usage for a single HTTP request.
// The handler stores a pointer in the context and reads it back for response headers.
type EmbeddingUsage struct {
	TotalTokens int
	Used        bool // set once the embedder ran, even for a cached 0-token query
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

// AddTokens records consumed tokens.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u != nil {
		u.TotalTokens += n
		u.Used = true
	}
}
