package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/skurag/internal/config"
	dbValkey "github.com/kailas-cloud/skurag/internal/db/valkey"
	"github.com/kailas-cloud/skurag/internal/domain"
	logpkg "github.com/kailas-cloud/skurag/internal/logger"
	"github.com/kailas-cloud/skurag/internal/metrics"
	catalogrepo "github.com/kailas-cloud/skurag/internal/repository/catalog"
	"github.com/kailas-cloud/skurag/internal/repository/catalogindex"
	"github.com/kailas-cloud/skurag/internal/repository/embcache"
	chiTransport "github.com/kailas-cloud/skurag/internal/transport/chi"
	localEmb "github.com/kailas-cloud/skurag/internal/transport/local"
	openaiTransport "github.com/kailas-cloud/skurag/internal/transport/openai"
	conversationuc "github.com/kailas-cloud/skurag/internal/usecase/conversation"
	embeddinguc "github.com/kailas-cloud/skurag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/skurag/internal/usecase/health"
	promptuc "github.com/kailas-cloud/skurag/internal/usecase/prompt"
	retrievaluc "github.com/kailas-cloud/skurag/internal/usecase/retrieval"
	"github.com/kailas-cloud/skurag/internal/version"
)

// catalogSource is what the composition root needs from any catalog backend.
type catalogSource interface {
	retrievaluc.Source
	fmt.Stringer
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic("failed to load .env: " + err.Error())
	}

	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting skurag API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("catalog_source", cfg.Catalog.Source),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Bool("completion_enabled", cfg.Completion.Enabled()),
	)

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()

	ctx := context.Background()
	var healthOpts []healthuc.Option

	// Optional embedding cache
	var store *dbValkey.Store
	if cfg.Cache.Enabled {
		store, err = dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.Cache.Addrs,
			Username: cfg.Cache.Username,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		healthOpts = append(healthOpts, healthuc.WithPinger("cache", store))
		logger.Info("Connected to cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	base, err := buildBaseEmbedder(cfg.Embedding, logger)
	if err != nil {
		logger.Fatal("Failed to create embedder", zap.Error(err))
	}
	healthOpts = append(healthOpts, healthuc.WithProvider("embedding", base))
	embedder := buildEmbedder(base, cfg.Embedding, cfg.Cache, store, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
	)

	source, err := buildSource(ctx, cfg.Catalog)
	if err != nil {
		logger.Fatal("Failed to open catalog source", zap.Error(err))
	}
	if c, ok := source.(interface{ Close() error }); ok {
		defer func() { _ = c.Close() }()
	}
	if p, ok := source.(healthuc.Pinger); ok {
		healthOpts = append(healthOpts, healthuc.WithPinger("catalog", p))
	}

	metric, err := catalogindex.ParseMetric(cfg.Retrieval.Metric)
	if err != nil {
		logger.Fatal("Invalid retrieval metric", zap.Error(err))
	}

	index := catalogindex.NewHolder(nil)
	retrievalSvc := retrievaluc.New(index, source, embedder, metric, logger)

	stats, err := retrievalSvc.Reload(ctx)
	if err != nil {
		logger.Fatal("Failed to build catalog index", zap.Stringer("source", source), zap.Error(err))
	}
	logger.Info("Catalog index ready",
		zap.Stringer("source", source),
		zap.Int("records", stats.Records),
		zap.Int("dimensions", stats.Dimensions),
	)

	// Conversation endpoints need a completion provider.
	var convSvc chiTransport.ConversationService
	if cfg.Completion.Enabled() {
		completer := openaiTransport.NewCompleter(&openaiTransport.Config{
			APIKey:       cfg.Completion.APIKey,
			BaseURL:      cfg.Completion.BaseURL,
			Organization: cfg.Completion.Organization,
			Provider:     "openai",
			Logger:       logger,
		})
		healthOpts = append(healthOpts, healthuc.WithProvider("completion", completer))

		assembler := promptuc.New(promptuc.Config{
			Guardrails:  cfg.Agent.Guardrails,
			AgentPrompt: cfg.Agent.Prompt,
		})
		convSvc = conversationuc.New(retrievalSvc, assembler, completer, conversationuc.Config{
			Greeting:         cfg.Agent.Greeting,
			Model:            cfg.Completion.Model,
			TopK:             cfg.Retrieval.TopK,
			RetrievalTimeout: cfg.Retrieval.Timeout(),
		}, logger)
	} else {
		logger.Warn("Completion provider not configured, conversation endpoints disabled")
	}

	healthSvc := healthuc.New(retrievalSvc, healthOpts...)

	server := chiTransport.NewServer(retrievalSvc, convSvc, healthSvc, cfg.Retrieval.TopK, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// baseEmbedder is a provider-level embedder that can report its own availability.
type baseEmbedder interface {
	domain.Embedder
	domain.HealthChecker
}

func buildBaseEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) (baseEmbedder, error) {
	switch cfg.Provider {
	case "openai":
		return openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			Organization: cfg.Organization,
			Model:        cfg.Model,
			Dimensions:   cfg.Dimensions,
			Provider:     cfg.Provider,
			Logger:       logger,
		}), nil
	default:
		return localEmb.NewEncoder(localEmb.Config{
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			MaxTokens:  cfg.MaxTokens,
			Seed:       cfg.Seed,
		})
	}
}

// buildEmbedder assembles the decorator chain: provider -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	base domain.Embedder,
	cfg config.EmbeddingConfig,
	cacheCfg config.CacheConfig,
	store *dbValkey.Store,
	logger *zap.Logger,
) domain.Embedder {
	embedder := base
	if store != nil {
		ttl := time.Duration(cacheCfg.TTLSec) * time.Second
		scope := embcache.Scope{
			Provider:   cfg.Provider,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Seed:       cfg.Seed,
		}
		if d, ok := base.(interface{ Dimensions() int }); ok {
			scope.Dimensions = d.Dimensions()
		}
		embedder = embcache.New(base, store, scope, ttl, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Provider, cfg.Model, cfg.MaxBatchSize, logger,
	)

	// Instruction prefix (outermost, so the cache key includes it)
	if cfg.Instruction != "" {
		return domain.NewInstructionEmbedder(embedder, cfg.Instruction)
	}
	return embedder
}

func buildSource(ctx context.Context, cfg config.CatalogConfig) (catalogSource, error) {
	switch cfg.Source {
	case catalogrepo.KindMongo:
		return catalogrepo.NewMongoSource(ctx, catalogrepo.MongoConfig{
			URI:              cfg.Mongo.URI,
			Database:         cfg.Mongo.Database,
			Collection:       cfg.Mongo.Collection,
			SortField:        cfg.Mongo.SortField,
			DescriptionField: cfg.DescriptionField,
			ConnectTimeout:   time.Duration(cfg.Mongo.ConnectTimeoutSec) * time.Second,
		})
	case catalogrepo.KindSQLite:
		return catalogrepo.NewSQLiteSource(ctx, cfg.SQLite.DSN, cfg.SQLite.Query, cfg.DescriptionField)
	default:
		return catalogrepo.NewFileSource(cfg.File.Path, cfg.DescriptionField)
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.ErrorCodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
