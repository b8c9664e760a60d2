package retrieval

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/skurag/internal/domain"
	domcat "github.com/kailas-cloud/skurag/internal/domain/catalog"
	"github.com/kailas-cloud/skurag/internal/repository/catalogindex"
	"github.com/kailas-cloud/skurag/internal/transport/local"
)

// --- Mocks ---

type staticSource struct {
	rows  []string
	err   error
	calls atomic.Int32
	gate  chan struct{}
}

func (s *staticSource) Load(_ context.Context) ([]domcat.Record, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domcat.Record, len(s.rows))
	for i, d := range s.rows {
		r, err := domcat.New(i, map[string]any{"description": d, "sku": i}, "")
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

type countingEmbedder struct {
	inner domain.Embedder
	calls atomic.Int32
	err   error
}

func (e *countingEmbedder) Embed(ctx context.Context, texts []string) (domain.EmbeddingResult, error) {
	e.calls.Add(1)
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	return e.inner.Embed(ctx, texts)
}

func newEncoder(t *testing.T) *local.Encoder {
	t.Helper()
	enc, err := local.NewEncoder(local.Config{})
	require.NoError(t, err)
	return enc
}

func newService(t *testing.T, src Source, emb domain.Embedder) *Service {
	t.Helper()
	return New(catalogindex.NewHolder(nil), src, emb, catalogindex.MetricL2, zap.NewNop())
}

// --- Tests ---

func TestRetrieve_RedItemsOutrankBlue(t *testing.T) {
	src := &staticSource{rows: []string{"red wool sweater", "blue cotton shirt", "red cotton sweater"}}
	svc := newService(t, src, newEncoder(t))

	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	res, err := svc.Retrieve(context.Background(), "red sweater", 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.ElementsMatch(t, []int{0, 2}, []int{res[0].Position, res[1].Position})
	assert.LessOrEqual(t, res[0].Distance, res[1].Distance)
}

func TestReload_EmptyCatalog(t *testing.T) {
	svc := newService(t, &staticSource{}, newEncoder(t))

	_, err := svc.Reload(context.Background())
	require.ErrorIs(t, err, domain.ErrEmptyCatalog)
	assert.False(t, svc.Ready())

	_, err = svc.Retrieve(context.Background(), "anything", 1)
	assert.ErrorIs(t, err, domain.ErrIndexNotReady)
}

func TestRetrieve_KCappedAtCatalogSize(t *testing.T) {
	src := &staticSource{rows: []string{"green hat", "yellow scarf"}}
	svc := newService(t, src, newEncoder(t))
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	res, err := svc.Retrieve(context.Background(), "hat", 5)
	require.NoError(t, err)
	assert.Len(t, res, 2)
}

func TestRetrieve_BlankQueryShortCircuits(t *testing.T) {
	emb := &countingEmbedder{inner: newEncoder(t)}
	svc := newService(t, &staticSource{rows: []string{"green hat"}}, emb)
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)
	before := emb.calls.Load()

	for _, q := range []string{"", "   ", "\t\n"} {
		res, err := svc.Retrieve(context.Background(), q, 3)
		require.NoError(t, err)
		assert.Empty(t, res)
	}
	assert.Equal(t, before, emb.calls.Load())
}

func TestRetrieve_BlankQueryIgnoresK(t *testing.T) {
	emb := &countingEmbedder{inner: newEncoder(t)}
	svc := newService(t, &staticSource{rows: []string{"green hat"}}, emb)
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)
	before := emb.calls.Load()

	for _, k := range []int{0, -1} {
		res, err := svc.Retrieve(context.Background(), "", k)
		require.NoError(t, err)
		assert.NotNil(t, res)
		assert.Empty(t, res)
	}
	assert.Equal(t, before, emb.calls.Load())
}

func TestRetrieve_InvalidK(t *testing.T) {
	svc := newService(t, &staticSource{rows: []string{"green hat"}}, newEncoder(t))
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	_, err = svc.Retrieve(context.Background(), "hat", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestRetrieve_EmbedderFailurePropagates(t *testing.T) {
	emb := &countingEmbedder{inner: newEncoder(t)}
	svc := newService(t, &staticSource{rows: []string{"green hat"}}, emb)
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	emb.err = domain.ErrEncoding
	_, err = svc.Retrieve(context.Background(), "hat", 1)
	assert.ErrorIs(t, err, domain.ErrEncoding)
}

func TestRetrieve_Deterministic(t *testing.T) {
	src := &staticSource{rows: []string{"red wool sweater", "blue cotton shirt", "red cotton sweater", "black boots"}}
	svc := newService(t, src, newEncoder(t))
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	first, err := svc.Retrieve(context.Background(), "cotton", 4)
	require.NoError(t, err)
	second, err := svc.Retrieve(context.Background(), "cotton", 4)
	require.NoError(t, err)
	assert.Equal(t, first.Descriptions(), second.Descriptions())
}

func TestReload_FailureKeepsPreviousIndex(t *testing.T) {
	src := &staticSource{rows: []string{"green hat", "yellow scarf"}}
	svc := newService(t, src, newEncoder(t))
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	src.err = errors.New("source unavailable")
	_, err = svc.Reload(context.Background())
	require.Error(t, err)

	res, err := svc.Retrieve(context.Background(), "hat", 5)
	require.NoError(t, err)
	assert.Len(t, res, 2)
}

func TestReload_SwapsToNewCatalog(t *testing.T) {
	src := &staticSource{rows: []string{"green hat"}}
	svc := newService(t, src, newEncoder(t))
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	src.rows = []string{"green hat", "yellow scarf", "purple gloves"}
	stats, err := svc.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, local.DefaultDimensions, stats.Dimensions)
	assert.Equal(t, "l2", stats.Metric)

	res, err := svc.Retrieve(context.Background(), "gloves", 10)
	require.NoError(t, err)
	assert.Len(t, res, 3)
}

func TestReload_ConcurrentCallsShareOneBuild(t *testing.T) {
	src := &staticSource{rows: []string{"green hat"}, gate: make(chan struct{})}
	svc := newService(t, src, newEncoder(t))

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Reload(context.Background())
		}(i)
	}

	// let all callers join the in-flight build before releasing it
	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestReload_CallerCancellation(t *testing.T) {
	src := &staticSource{rows: []string{"green hat"}, gate: make(chan struct{})}
	svc := newService(t, src, newEncoder(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Reload(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(src.gate)
	assert.Eventually(t, svc.Ready, time.Second, 10*time.Millisecond)
}

func TestRetrieve_RecordsQueryTokenUsage(t *testing.T) {
	svc := newService(t, &staticSource{rows: []string{"green hat", "red scarf"}}, newEncoder(t))
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	ctx, usage := domain.NewContextWithUsage(context.Background())
	_, err = svc.Retrieve(ctx, "red scarf", 1)
	require.NoError(t, err)

	assert.True(t, usage.Used)
	assert.Positive(t, usage.TotalTokens)
}
