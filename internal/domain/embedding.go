package domain

import (
	"context"
	"fmt"
	"math"
)

// Embedder is the shared text vectorization contract between layers.
// Implementations return exactly one vector per input text, in input order.
// An empty input yields an empty result and no error.
type Embedder interface {
	Embed(ctx context.Context, texts []string) (EmbeddingResult, error)
}

// HealthChecker verifies embedding or completion provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries embedding vectors and token usage through the decorator chain.
type EmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// CheckEmbeddings verifies that res holds want vectors of one common, non-zero length
// with only finite components and returns that length. Violations are reported as ErrEncoding.
func CheckEmbeddings(res EmbeddingResult, want int) (int, error) {
	if len(res.Embeddings) != want {
		return 0, fmt.Errorf("%w: expected %d vectors, got %d", ErrEncoding, want, len(res.Embeddings))
	}
	if want == 0 {
		return 0, nil
	}
	dim := len(res.Embeddings[0])
	if dim == 0 {
		return 0, fmt.Errorf("%w: zero-length vector at 0", ErrEncoding)
	}
	for i, v := range res.Embeddings {
		if len(v) != dim {
			return 0, fmt.Errorf("%w: vector %d has %d dimensions, expected %d", ErrEncoding, i, len(v), dim)
		}
		for _, x := range v {
			if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
				return 0, fmt.Errorf("%w: vector %d has non-finite components", ErrEncoding, i)
			}
		}
	}
	return dim, nil
}

// InstructionEmbedder is a domain decorator that prepends instruction text before embedding.
type InstructionEmbedder struct {
	inner       Embedder
	instruction string
}

// NewInstructionEmbedder creates a decorator that prepends instruction text.
func NewInstructionEmbedder(inner Embedder, instruction string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, instruction: instruction}
}

// Embed prepends the instruction to each text and delegates to the inner embedder.
func (e *InstructionEmbedder) Embed(ctx context.Context, texts []string) (EmbeddingResult, error) {
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = e.instruction + t
	}
	res, err := e.inner.Embed(ctx, prefixed)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("instruction embed: %w", err)
	}
	return res, nil
}
