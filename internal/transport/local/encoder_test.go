package local

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/skurag/internal/domain"
)

func newTestEncoder(t *testing.T) *Encoder {
	t.Helper()
	e, err := NewEncoder(Config{Dimensions: 256, MaxTokens: 16})
	require.NoError(t, err)
	return e
}

func TestEmbed_EmptyInput(t *testing.T) {
	res, err := newTestEncoder(t).Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Embeddings)
}

func TestEmbed_Deterministic(t *testing.T) {
	e := newTestEncoder(t)
	for _, text := range []string{"red wool sweater", "", "Blue COTTON shirt!", "ünïcödé tëxt 42"} {
		a, err := e.Embed(context.Background(), []string{text})
		require.NoError(t, err)
		b, err := e.Embed(context.Background(), []string{text})
		require.NoError(t, err)
		assert.Equal(t, a.Embeddings, b.Embeddings, "text %q", text)
	}
}

func TestEmbed_IndependentOfBatchNeighbours(t *testing.T) {
	e := newTestEncoder(t)

	alone, err := e.Embed(context.Background(), []string{"red sweater"})
	require.NoError(t, err)
	batched, err := e.Embed(context.Background(), []string{
		"a much longer description that forces padding of the short one",
		"red sweater",
	})
	require.NoError(t, err)

	assert.Equal(t, alone.Embeddings[0], batched.Embeddings[1])
}

func TestEmbed_OrderPreserved(t *testing.T) {
	e := newTestEncoder(t)
	texts := []string{"one", "two", "three"}

	batch, err := e.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch.Embeddings, len(texts))

	for i, text := range texts {
		single, err := e.Embed(context.Background(), []string{text})
		require.NoError(t, err)
		assert.Equal(t, single.Embeddings[0], batch.Embeddings[i], "index %d", i)
	}
}

func TestEmbed_FixedDimensions(t *testing.T) {
	e := newTestEncoder(t)
	res, err := e.Embed(context.Background(), []string{"a", "a b c d e f"})
	require.NoError(t, err)
	for _, v := range res.Embeddings {
		assert.Len(t, v, 256)
	}
}

func TestEmbed_Truncation(t *testing.T) {
	e := newTestEncoder(t)
	words := make([]string, 40)
	for i := range words {
		words[i] = "w"
	}
	long := strings.Join(words, " ")
	longer := long + " extra tail words"

	res, err := e.Embed(context.Background(), []string{long, longer})
	require.NoError(t, err)
	assert.Equal(t, res.Embeddings[0], res.Embeddings[1], "tokens beyond the limit must be dropped")
	assert.Equal(t, 32, res.TotalTokens)
}

func TestEmbed_InvalidUTF8(t *testing.T) {
	_, err := newTestEncoder(t).Embed(context.Background(), []string{"ok", string([]byte{0xff, 0xfe})})
	require.ErrorIs(t, err, domain.ErrEncoding)
}

func TestEmbed_SharedVocabularyIsCloser(t *testing.T) {
	e := newTestEncoder(t)
	res, err := e.Embed(context.Background(), []string{"red sweater", "red wool sweater", "blue cotton shirt"})
	require.NoError(t, err)

	q, red, blue := res.Embeddings[0], res.Embeddings[1], res.Embeddings[2]
	assert.Less(t, dist(q, red), dist(q, blue))
}

func TestNewEncoder_Validation(t *testing.T) {
	_, err := NewEncoder(Config{Dimensions: -1})
	require.ErrorIs(t, err, domain.ErrEncoding)

	_, err = NewEncoder(Config{MaxTokens: 2})
	require.ErrorIs(t, err, domain.ErrEncoding)

	e, err := NewEncoder(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultDimensions, e.Dimensions())
	assert.Equal(t, "local-hash", e.Model())
}

func dist(a, b []float32) float32 {
	var s float32
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
