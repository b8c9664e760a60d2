package catalogindex

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/skurag/internal/domain"
	"github.com/kailas-cloud/skurag/internal/domain/catalog"
)

// tableEmbedder returns a fixed vector per text.
type tableEmbedder struct {
	vectors map[string][]float32
	calls   int
	err     error
}

func (e *tableEmbedder) Embed(_ context.Context, texts []string) (domain.EmbeddingResult, error) {
	e.calls++
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vectors[t]
	}
	return domain.EmbeddingResult{Embeddings: out}, nil
}

func records(t *testing.T, descs ...string) []catalog.Record {
	t.Helper()
	out := make([]catalog.Record, len(descs))
	for i, d := range descs {
		r, err := catalog.New(i, map[string]any{"description": d, "sku": i}, "")
		require.NoError(t, err)
		out[i] = r
	}
	return out
}

func TestBuild_EmptyCatalog(t *testing.T) {
	emb := &tableEmbedder{}
	idx, err := Build(context.Background(), nil, emb)

	require.ErrorIs(t, err, domain.ErrEmptyCatalog)
	assert.Nil(t, idx)
	assert.Zero(t, emb.calls, "embedder must not be called for an empty catalog")
}

func TestBuild_MissingDescription(t *testing.T) {
	recs := append(records(t, "a"), catalog.Record{})
	_, err := Build(context.Background(), recs, &tableEmbedder{vectors: map[string][]float32{"a": {1}}})

	var se *domain.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Position)
	assert.Equal(t, catalog.DefaultDescriptionField, se.Field)
}

func TestBuild_SingleBatchedCall(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string][]float32{"a": {0, 0}, "b": {1, 1}, "c": {2, 2}}}
	idx, err := Build(context.Background(), records(t, "a", "b", "c"), emb)
	require.NoError(t, err)

	assert.Equal(t, 1, emb.calls)
	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, 2, idx.Dimensions())
}

func TestBuild_EncodingFailure(t *testing.T) {
	emb := &tableEmbedder{err: domain.ErrEncoding}
	idx, err := Build(context.Background(), records(t, "a"), emb)

	require.ErrorIs(t, err, domain.ErrEncoding)
	assert.Nil(t, idx)
}

func TestBuild_RaggedVectors(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string][]float32{"a": {0, 0}, "b": {1}}}
	_, err := Build(context.Background(), records(t, "a", "b"), emb)
	require.ErrorIs(t, err, domain.ErrEncoding)
}

func TestSearch_RanksByAscendingDistance(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string][]float32{
		"far":  {10, 0},
		"near": {1, 0},
		"mid":  {3, 0},
	}}
	idx, err := Build(context.Background(), records(t, "far", "near", "mid"), emb)
	require.NoError(t, err)

	res, err := idx.Search([]float32{0, 0}, 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"near", "mid", "far"}, res.Descriptions())
	assert.Equal(t, []int{1, 2, 0}, positions(res))
	assert.Equal(t, float32(1), res[0].Distance)
	assert.Equal(t, float32(9), res[1].Distance)
	assert.Equal(t, float32(100), res[2].Distance)
}

func TestSearch_TiesKeepCatalogOrder(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string][]float32{
		"a": {1, 0},
		"b": {0, 1},
		"c": {-1, 0},
		"d": {5, 5},
	}}
	idx, err := Build(context.Background(), records(t, "d", "a", "b", "c"), emb)
	require.NoError(t, err)

	res, err := idx.Search([]float32{0, 0}, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 0}, positions(res))
}

func TestSearch_KCapped(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string][]float32{"a": {0}, "b": {1}}}
	idx, err := Build(context.Background(), records(t, "a", "b"), emb)
	require.NoError(t, err)

	res, err := idx.Search([]float32{0}, 5)
	require.NoError(t, err)
	assert.Len(t, res, 2)
}

func TestSearch_InvalidK(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string][]float32{"a": {0}}}
	idx, err := Build(context.Background(), records(t, "a"), emb)
	require.NoError(t, err)

	_, err = idx.Search([]float32{0}, 0)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSearch_DimensionGuard(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string][]float32{"a": {0, 0, 0}}}
	idx, err := Build(context.Background(), records(t, "a"), emb)
	require.NoError(t, err)

	for _, q := range [][]float32{{0, 0}, {0, 0, 0, 0}, nil} {
		_, err := idx.Search(q, 1)
		var dm *domain.DimensionMismatchError
		require.True(t, errors.As(err, &dm), "query len %d", len(q))
		assert.Equal(t, 3, dm.Want)
		assert.Equal(t, len(q), dm.Got)
	}
}

func TestSearch_ResultsComeFromCatalog(t *testing.T) {
	descs := []string{"a", "b", "c", "d", "e"}
	vecs := map[string][]float32{}
	for i, d := range descs {
		vecs[d] = []float32{float32(i * i), float32(-i)}
	}
	recs := records(t, descs...)
	idx, err := Build(context.Background(), recs, &tableEmbedder{vectors: vecs})
	require.NoError(t, err)

	res, err := idx.Search([]float32{4, -1}, 5)
	require.NoError(t, err)

	var prev float32
	for i, h := range res {
		assert.GreaterOrEqual(t, h.Distance, float32(0))
		if i > 0 {
			assert.GreaterOrEqual(t, h.Distance, prev)
		}
		prev = h.Distance
		assert.Equal(t, recs[h.Position].Description(), h.Record.Description())
	}
}

func TestSearch_CosineIgnoresMagnitude(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string][]float32{
		"long-aligned": {10, 0},
		"short-off":    {0.5, 0.5},
	}}
	idx, err := Build(context.Background(), records(t, "short-off", "long-aligned"), emb, WithMetric(MetricCosine))
	require.NoError(t, err)

	res, err := idx.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, "long-aligned", res[0].Record.Description())
	assert.InDelta(t, 0, res[0].Distance, 1e-6)
}

func TestSearch_ConcurrentReaders(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string][]float32{"a": {0}, "b": {1}, "c": {2}}}
	idx, err := Build(context.Background(), records(t, "a", "b", "c"), emb)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := idx.Search([]float32{2}, 1)
			assert.NoError(t, err)
			assert.Equal(t, "c", res[0].Record.Description())
		}()
	}
	wg.Wait()
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, MetricL2, m)

	m, err = ParseMetric("Cosine")
	require.NoError(t, err)
	assert.Equal(t, MetricCosine, m)

	_, err = ParseMetric("manhattan")
	require.Error(t, err)
}

func positions(res catalog.Result) []int {
	out := make([]int, len(res))
	for i, h := range res {
		out[i] = h.Position
	}
	return out
}
