// Package local provides an in-process, deterministic text encoder.
//
// Each token is mapped to a pseudo-random vector seeded by a 64-bit FNV hash of the token,
// and a text is represented by the mean of its token vectors (attention-masked mean pooling).
// Texts sharing vocabulary land close to each other under Euclidean distance.
package local

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/skurag/internal/domain"
)

const (
	clsToken = "[CLS]"
	sepToken = "[SEP]"
	padToken = "[PAD]"
)

// DefaultDimensions and DefaultMaxTokens mirror a base-size BERT encoder.
const (
	DefaultDimensions = 384
	DefaultMaxTokens  = 512
)

// Config holds encoder settings.
type Config struct {
	Model      string
	Dimensions int
	MaxTokens  int // includes [CLS] and [SEP]
	Seed       uint64
}

// Encoder is a deterministic local embedder. It holds no mutable state and is safe
// for concurrent use.
type Encoder struct {
	model     string
	dim       int
	maxTokens int
	seed      uint64
}

// NewEncoder validates cfg and returns an encoder.
func NewEncoder(cfg Config) (*Encoder, error) {
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Dimensions < 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", domain.ErrEncoding, cfg.Dimensions)
	}
	if cfg.MaxTokens < 3 {
		return nil, fmt.Errorf("%w: max tokens must be at least 3, got %d", domain.ErrEncoding, cfg.MaxTokens)
	}
	if cfg.Model == "" {
		cfg.Model = "local-hash"
	}
	return &Encoder{model: cfg.Model, dim: cfg.Dimensions, maxTokens: cfg.MaxTokens, seed: cfg.Seed}, nil
}

// Dimensions returns the vector length produced by the encoder.
func (e *Encoder) Dimensions() int { return e.dim }

// Model returns the model identifier.
func (e *Encoder) Model() string { return e.model }

// Embed implements domain.Embedder.
// Sequences in one call are padded to the longest and truncated to MaxTokens; padding is
// masked out of the pooling, so a text's vector never depends on its batch neighbours.
func (e *Encoder) Embed(ctx context.Context, texts []string) (domain.EmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.EmbeddingResult{}, nil
	}

	batch := make([][]string, len(texts))
	longest := 0
	for i, t := range texts {
		if !utf8.ValidString(t) {
			return domain.EmbeddingResult{}, fmt.Errorf("%w: text %d is not valid UTF-8", domain.ErrEncoding, i)
		}
		batch[i] = e.tokenize(t)
		longest = max(longest, len(batch[i]))
	}

	masks := make([][]bool, len(batch))
	for i, seq := range batch {
		masks[i] = make([]bool, longest)
		for j := 0; j < longest; j++ {
			masks[i][j] = j < len(seq)
		}
		for len(seq) < longest {
			seq = append(seq, padToken)
		}
		batch[i] = seq
	}

	out := make([][]float32, len(batch))
	total := 0
	for i, seq := range batch {
		if err := ctx.Err(); err != nil {
			return domain.EmbeddingResult{}, errors.Join(domain.ErrEncoding, err)
		}
		out[i] = e.pool(seq, masks[i])
		total += countTrue(masks[i])
	}

	return domain.EmbeddingResult{Embeddings: out, PromptTokens: total, TotalTokens: total}, nil
}

// HealthCheck always succeeds: the encoder has no external dependencies.
func (e *Encoder) HealthCheck(context.Context) error { return nil }

// tokenize lowercases, splits on anything that is not a letter or digit and wraps the
// sequence in [CLS] ... [SEP], truncating to maxTokens.
func (e *Encoder) tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if limit := e.maxTokens - 2; len(words) > limit {
		words = words[:limit]
	}
	seq := make([]string, 0, len(words)+2)
	seq = append(seq, clsToken)
	seq = append(seq, words...)
	return append(seq, sepToken)
}

func (e *Encoder) pool(seq []string, mask []bool) []float32 {
	acc := make([]float64, e.dim)
	n := 0
	for j, tok := range seq {
		if !mask[j] {
			continue
		}
		e.accumulate(acc, tok)
		n++
	}
	vec := make([]float32, e.dim)
	for d := range acc {
		vec[d] = float32(acc[d] / float64(n))
	}
	return vec
}

// accumulate adds the token's vector to acc. Components are uniform in [-1, 1),
// generated by splitmix64 from the token hash.
func (e *Encoder) accumulate(acc []float64, token string) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	state := h.Sum64() ^ e.seed
	for d := range acc {
		state += 0x9e3779b97f4a7c15
		z := state
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		z ^= z >> 31
		acc[d] += float64(z>>11)/float64(1<<53)*2 - 1
	}
}

func countTrue(mask []bool) int {
	n := 0
	for _, m := range mask {
		if m {
			n++
		}
	}
	return n
}
