// Package retrieval answers "given free text, return the top-k catalog records".
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/skurag/internal/domain"
	domcat "github.com/kailas-cloud/skurag/internal/domain/catalog"
	"github.com/kailas-cloud/skurag/internal/metrics"
	"github.com/kailas-cloud/skurag/internal/repository/catalogindex"
)

// DefaultTopK is the number of records retrieved when the caller does not choose.
const DefaultTopK = 5

// ReloadStats summarizes a completed index build.
type ReloadStats struct {
	Records    int           `json:"records"`
	Dimensions int           `json:"dimensions"`
	Metric     string        `json:"metric"`
	Duration   time.Duration `json:"duration_ns"`
}

// Service embeds queries and searches the current catalog index.
// The same embedder builds the index and encodes queries.
type Service struct {
	index    *catalogindex.Holder
	source   Source
	embedder domain.Embedder
	metric   catalogindex.Metric
	logger   *zap.Logger
	reloads  singleflight.Group
}

// New creates a retrieval service. The index stays empty until Reload succeeds.
func New(
	index *catalogindex.Holder, source Source, embedder domain.Embedder,
	metric catalogindex.Metric, logger *zap.Logger,
) *Service {
	return &Service{
		index:    index,
		source:   source,
		embedder: embedder,
		metric:   metric,
		logger:   logger,
	}
}

// Retrieve returns up to k records ranked by ascending distance to query.
// A blank query yields an empty result without touching the embedder, whatever k is.
func (s *Service) Retrieve(ctx context.Context, query string, k int) (domcat.Result, error) {
	if strings.TrimSpace(query) == "" {
		return domcat.Result{}, nil
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be >= 1, got %d", domain.ErrInvalidArgument, k)
	}

	start := time.Now()
	res, err := s.retrieve(ctx, query, k)
	duration := time.Since(start)

	if err != nil {
		metrics.RetrievalDuration.WithLabelValues("error").Observe(duration.Seconds())
		metrics.RetrievalFailuresTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	metrics.RetrievalDuration.WithLabelValues("success").Observe(duration.Seconds())
	metrics.RetrievalResults.Observe(float64(len(res)))
	return res, nil
}

func (s *Service) retrieve(ctx context.Context, query string, k int) (domcat.Result, error) {
	emb, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(emb.TotalTokens)
	if _, err := domain.CheckEmbeddings(emb, 1); err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	res, err := s.index.Search(emb.Embeddings[0], k)
	if err != nil {
		return nil, fmt.Errorf("search catalog: %w", err)
	}
	return res, nil
}

// Reload loads the catalog, builds a new index and publishes it atomically.
// Concurrent calls share one build. On failure the previous index stays in place.
func (s *Service) Reload(ctx context.Context) (ReloadStats, error) {
	ch := s.reloads.DoChan("reload", func() (any, error) {
		// the build outlives any single waiting caller
		return s.reload(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return ReloadStats{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return ReloadStats{}, r.Err
		}
		return r.Val.(ReloadStats), nil
	}
}

func (s *Service) reload(ctx context.Context) (ReloadStats, error) {
	start := time.Now()

	records, err := s.source.Load(ctx)
	if err != nil {
		metrics.CatalogReloadsTotal.WithLabelValues("error").Inc()
		return ReloadStats{}, fmt.Errorf("load catalog: %w", err)
	}

	idx, err := catalogindex.Build(ctx, records, s.embedder, catalogindex.WithMetric(s.metric))
	if err != nil {
		metrics.CatalogReloadsTotal.WithLabelValues("error").Inc()
		return ReloadStats{}, fmt.Errorf("build index: %w", err)
	}

	s.index.Swap(idx)
	metrics.CatalogRecords.Set(float64(idx.Len()))
	metrics.CatalogReloadsTotal.WithLabelValues("success").Inc()

	stats := ReloadStats{
		Records:    idx.Len(),
		Dimensions: idx.Dimensions(),
		Metric:     idx.Metric().String(),
		Duration:   time.Since(start),
	}
	s.logger.Info("Catalog index built",
		zap.Int("records", stats.Records),
		zap.Int("dimensions", stats.Dimensions),
		zap.String("metric", stats.Metric),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// Ready reports whether an index has been published.
func (s *Service) Ready() bool { return s.index.Ready() }

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, domain.ErrIndexNotReady):
		return "not_ready"
	case errors.Is(err, domain.ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, domain.ErrEncoding):
		return "encoding"
	default:
		return "other"
	}
}
