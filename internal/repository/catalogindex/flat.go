// Package catalogindex implements the in-memory nearest-neighbor index over catalog descriptions.
package catalogindex

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/kailas-cloud/skurag/internal/domain"
	"github.com/kailas-cloud/skurag/internal/domain/catalog"
)

// Flat is an exact brute-force index. Entry i always corresponds to records[i].
// It is read-only after Build and safe for concurrent Search.
type Flat struct {
	records []catalog.Record
	vectors []float32 // row-major, len(records)*dim
	dim     int
	metric  Metric
}

// Option configures Build.
type Option func(*Flat)

// WithMetric selects the distance metric (default MetricL2).
func WithMetric(m Metric) Option {
	return func(f *Flat) { f.metric = m }
}

// Build embeds every record description in a single batched call and builds the index.
// Any failure returns no index.
func Build(ctx context.Context, records []catalog.Record, embedder domain.Embedder, opts ...Option) (*Flat, error) {
	if len(records) == 0 {
		return nil, domain.ErrEmptyCatalog
	}

	texts := make([]string, len(records))
	for i, r := range records {
		if r.Description() == "" {
			return nil, domain.NewSchemaError(i, r.DescriptionField(), "missing")
		}
		texts[i] = r.Description()
	}

	res, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed catalog: %w", err)
	}
	dim, err := domain.CheckEmbeddings(res, len(texts))
	if err != nil {
		return nil, fmt.Errorf("embed catalog: %w", err)
	}

	f := &Flat{
		records: slices.Clone(records),
		vectors: make([]float32, 0, len(records)*dim),
		dim:     dim,
	}
	for _, opt := range opts {
		opt(f)
	}

	for _, v := range res.Embeddings {
		f.vectors = append(f.vectors, v...)
	}
	if f.metric == MetricCosine {
		for i := range f.records {
			normalizeInPlace(f.row(i))
		}
	}

	return f, nil
}

// Search returns up to k records ranked by ascending distance to query.
// Ties keep catalog order. k larger than the catalog is capped.
func (f *Flat) Search(query []float32, k int) (catalog.Result, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be >= 1, got %d", domain.ErrInvalidArgument, k)
	}
	if len(query) != f.dim {
		return nil, domain.NewDimensionMismatch(f.dim, len(query))
	}

	q := query
	if f.metric == MetricCosine {
		q = slices.Clone(query)
		normalizeInPlace(q)
	}

	hits := make(catalog.Result, len(f.records))
	for i := range f.records {
		hits[i] = catalog.Hit{Position: i, Distance: squaredL2(q, f.row(i)), Record: f.records[i]}
	}

	// Stable sort keeps catalog order for equal distances.
	slices.SortStableFunc(hits, func(a, b catalog.Hit) int {
		return cmp.Compare(a.Distance, b.Distance)
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k:k], nil
}

// Len returns the number of indexed records.
func (f *Flat) Len() int { return len(f.records) }

// Dimensions returns the fixed vector length of the index.
func (f *Flat) Dimensions() int { return f.dim }

// Metric returns the distance metric in use.
func (f *Flat) Metric() Metric { return f.metric }

// Records returns the indexed records in catalog order.
func (f *Flat) Records() []catalog.Record { return slices.Clone(f.records) }

func (f *Flat) row(i int) []float32 {
	return f.vectors[i*f.dim : (i+1)*f.dim]
}
