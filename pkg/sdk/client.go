package skurag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	dbValkey "github.com/kailas-cloud/skurag/internal/db/valkey"
	"github.com/kailas-cloud/skurag/internal/domain"
	domcat "github.com/kailas-cloud/skurag/internal/domain/catalog"
	"github.com/kailas-cloud/skurag/internal/domain/conversation"
	"github.com/kailas-cloud/skurag/internal/metrics"
	catalogrepo "github.com/kailas-cloud/skurag/internal/repository/catalog"
	"github.com/kailas-cloud/skurag/internal/repository/catalogindex"
	"github.com/kailas-cloud/skurag/internal/repository/embcache"
	localEmb "github.com/kailas-cloud/skurag/internal/transport/local"
	openaiEmb "github.com/kailas-cloud/skurag/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/skurag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/skurag/internal/usecase/health"
	promptuc "github.com/kailas-cloud/skurag/internal/usecase/prompt"
	retrievaluc "github.com/kailas-cloud/skurag/internal/usecase/retrieval"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultOpenAIModel      = "text-embedding-3-small"
)

// Internal interfaces for substitution in tests.
type retrievalUseCase interface {
	Retrieve(ctx context.Context, query string, k int) (domcat.Result, error)
	Reload(ctx context.Context) (retrievaluc.ReloadStats, error)
}

type promptAssembler interface {
	Assemble(req conversation.Request, records domcat.Result) []conversation.Message
}

// Client is the skurag SDK entry point. It is safe for concurrent use.
type Client struct {
	store        *dbValkey.Store
	retrieval    retrievalUseCase
	assembler    promptAssembler
	healthSvc    healthUseCase
	topK         int
	closeSources func() error
	obs          *observer
}

// New creates a Client, loads the catalog and builds the search index.
// The provided context bounds the cache readiness check and the initial build.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{topK: retrievaluc.DefaultTopK}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.catalogFile == "" && cfg.catalogRows == nil {
		return nil, errors.New("skurag: catalog required (use WithCatalogFile or WithCatalogRecords)")
	}
	if cfg.topK < 1 {
		return nil, fmt.Errorf("skurag: %w: top k must be >= 1, got %d", domain.ErrInvalidArgument, cfg.topK)
	}
	if cfg.metric == "" {
		cfg.metric = catalogindex.MetricL2.String()
	}
	metric, err := catalogindex.ParseMetric(cfg.metric)
	if err != nil {
		return nil, fmt.Errorf("skurag: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	source, err := createSource(cfg)
	if err != nil {
		return nil, err
	}

	var store *dbValkey.Store
	if len(cfg.cacheAddrs) > 0 {
		store, err = createStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	embedder, err := createEmbedder(cfg, store)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	c := wireClient(cfg, source, embedder, metric, store, obs)
	if _, err := c.Reload(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func createSource(cfg *clientConfig) (retrievaluc.Source, error) {
	if cfg.catalogFile != "" {
		s, err := catalogrepo.NewFileSource(cfg.catalogFile, cfg.descriptionField)
		if err != nil {
			return nil, fmt.Errorf("skurag: open catalog: %w", err)
		}
		return s, nil
	}
	return &rowsSource{rows: cfg.catalogRows, descriptionField: cfg.descriptionField}, nil
}

func createStore(ctx context.Context, cfg *clientConfig) (*dbValkey.Store, error) {
	s, err := dbValkey.NewStore(dbValkey.Config{
		Addrs:    cfg.cacheAddrs,
		Password: cfg.cachePassword,
	})
	if err != nil {
		return nil, fmt.Errorf("skurag: create valkey store: %w", err)
	}
	if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		s.Close()
		return nil, fmt.Errorf("skurag: cache not ready: %w", err)
	}
	return s, nil
}

// createEmbedder assembles provider -> Cached -> Instrumented, mirroring the service.
func createEmbedder(cfg *clientConfig, store *dbValkey.Store) (domain.Embedder, error) {
	var (
		base       domain.Embedder
		provider   string
		model      string
		dimensions int
	)
	switch {
	case cfg.embedder != nil:
		base, provider, model = &embedderAdapter{inner: cfg.embedder}, "custom", "custom"
	case cfg.openAIKey != "":
		model = cfg.openAIModel
		if model == "" {
			model = defaultOpenAIModel
		}
		provider = "openai"
		base = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:   cfg.openAIKey,
			Model:    model,
			Provider: provider,
		})
	default:
		enc, err := localEmb.NewEncoder(localEmb.Config{Dimensions: cfg.localDimension})
		if err != nil {
			return nil, fmt.Errorf("skurag: create local encoder: %w", err)
		}
		base, provider, model, dimensions = enc, "local", enc.Model(), enc.Dimensions()
	}

	embedder := base
	if store != nil {
		scope := embcache.Scope{Provider: provider, Model: model, Dimensions: dimensions}
		embedder = embcache.New(base, store, scope, cfg.cacheTTL, metrics.EmbeddingCacheTotal, zap.NewNop())
	}
	return embeddinguc.NewInstrumentedEmbedder(embedder, provider, model, 0, zap.NewNop()), nil
}

func wireClient(
	cfg *clientConfig, source retrievaluc.Source, embedder domain.Embedder,
	metric catalogindex.Metric, store *dbValkey.Store, obs *observer,
) *Client {
	retrievalSvc := retrievaluc.New(catalogindex.NewHolder(nil), source, embedder, metric, zap.NewNop())

	var healthOpts []healthuc.Option
	if store != nil {
		healthOpts = append(healthOpts, healthuc.WithPinger("cache", store))
	}

	closeSources := func() error { return nil }
	if cl, ok := source.(interface{ Close() error }); ok {
		closeSources = cl.Close
	}

	return &Client{
		store:        store,
		retrieval:    retrievalSvc,
		assembler:    promptuc.New(promptuc.Config{Guardrails: cfg.guardrails, AgentPrompt: cfg.agentPrompt}),
		healthSvc:    healthuc.New(retrievalSvc, healthOpts...),
		topK:         cfg.topK,
		closeSources: closeSources,
		obs:          obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.closeSources != nil {
		_ = c.closeSources()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Reload re-reads the catalog and swaps in a freshly built index.
// On failure the previous index keeps serving.
func (c *Client) Reload(ctx context.Context) (stats ReloadStats, err error) {
	start := time.Now()
	defer func() { c.obs.observe("reload", start, err, "records", stats.Records) }()

	s, err := c.retrieval.Reload(ctx)
	if err != nil {
		return ReloadStats{}, fmt.Errorf("reload: %w", err)
	}
	return ReloadStats{
		Records:    s.Records,
		Dimensions: s.Dimensions,
		Metric:     s.Metric,
		Duration:   s.Duration,
	}, nil
}

// Retrieve returns up to k records closest to query, ascending by distance.
// A blank query returns no hits.
func (c *Client) Retrieve(ctx context.Context, query string, k int) (hits []Hit, err error) {
	start := time.Now()
	defer func() { c.obs.observe("retrieve", start, err, "hits", len(hits)) }()

	res, err := c.retrieval.Retrieve(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	return toHits(res), nil
}

// Prompt assembles the chat messages for one agent turn: system prompt, transcript,
// an optional reminder nudge and the descriptions retrieved for the latest user utterance.
func (c *Client) Prompt(ctx context.Context, transcript []Utterance, reminder bool) (msgs []Message, err error) {
	start := time.Now()
	defer func() { c.obs.observe("prompt", start, err) }()

	req := conversation.Request{
		InteractionType: conversation.ResponseRequired,
		Transcript:      toTranscript(transcript),
	}
	if reminder {
		req.InteractionType = conversation.ReminderRequired
	}

	res, err := c.retrieval.Retrieve(ctx, req.LatestUserUtterance(), c.topK)
	if err != nil {
		return nil, fmt.Errorf("prompt: %w", err)
	}
	return toMessages(c.assembler.Assemble(req, res)), nil
}

// rowsSource serves an in-memory catalog.
type rowsSource struct {
	rows             []map[string]any
	descriptionField string
}

func (s *rowsSource) Load(_ context.Context) ([]domcat.Record, error) {
	return domcat.Parse(s.rows, s.descriptionField)
}
