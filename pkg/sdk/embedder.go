package skurag

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/skurag/internal/domain"
)

// Embedder converts texts to vectors, one per input text and in input order.
// The same embedder encodes the catalog and every query.
type Embedder interface {
	Embed(ctx context.Context, texts []string) (EmbeddingResult, error)
}

// EmbeddingResult carries embedding vectors and aggregate token usage.
type EmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, texts []string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, texts)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEncoding, err)
	}
	return domain.EmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}
