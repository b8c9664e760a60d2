package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/skurag/internal/domain"
	domcat "github.com/kailas-cloud/skurag/internal/domain/catalog"
	"github.com/kailas-cloud/skurag/internal/domain/conversation"
	"github.com/kailas-cloud/skurag/internal/logger"
	healthuc "github.com/kailas-cloud/skurag/internal/usecase/health"
	retrievaluc "github.com/kailas-cloud/skurag/internal/usecase/retrieval"
)

const maxBodyBytes = 1 << 20

// RetrievalService is the retrieval contract served over HTTP.
type RetrievalService interface {
	Retrieve(ctx context.Context, query string, k int) (domcat.Result, error)
	Reload(ctx context.Context) (retrievaluc.ReloadStats, error)
}

// ConversationService is the turn contract served over HTTP.
type ConversationService interface {
	BeginMessage() conversation.Fragment
	Respond(ctx context.Context, req conversation.Request, emit func(conversation.Fragment) error) error
}

// HealthService aggregates component health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server exposes retrieval, conversation and operational endpoints.
type Server struct {
	retrieval     RetrievalService
	conversation  ConversationService
	health        HealthService
	defaultTopK   int
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. conversation may be nil, in which case
// the turn endpoints are not registered.
func NewServer(
	retrieval RetrievalService,
	conv ConversationService,
	health HealthService,
	defaultTopK int,
	logger *zap.Logger,
) *Server {
	if defaultTopK < 1 {
		defaultTopK = retrievaluc.DefaultTopK
	}
	s := &Server{
		retrieval:    retrieval,
		conversation: conv,
		health:       health,
		defaultTopK:  defaultTopK,
		logger:       logger,
	}
	s.errorHandlers = []errorHandler{
		timeoutHandler,
		sentinelHandler(domain.ErrInvalidArgument, http.StatusBadRequest, ErrorCodeInvalidArgument),
		sentinelHandler(domain.ErrIndexNotReady, http.StatusServiceUnavailable, ErrorCodeIndexNotReady),
		sentinelHandler(domain.ErrSchema, http.StatusUnprocessableEntity, ErrorCodeSchemaError),
		sentinelHandler(domain.ErrEmptyCatalog, http.StatusUnprocessableEntity, ErrorCodeEmptyCatalog),
		sentinelHandler(domain.ErrEncoding, http.StatusBadGateway, ErrorCodeEncodingError),
		sentinelHandler(domain.ErrCompletionProviderError, http.StatusBadGateway, ErrorCodeCompletionProviderError),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusInternalServerError, ErrorCodeDimensionMismatch),
	}
	return s
}

// Register mounts all routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/retrieve", s.Retrieve)
		r.Post("/catalog/reload", s.ReloadCatalog)
		if s.conversation != nil {
			r.Get("/begin", s.BeginMessage)
			r.Post("/responses", s.Respond)
		}
	})
}

// RetrieveRequest is the body of POST /v1/retrieve.
type RetrieveRequest struct {
	Query string `json:"query"`
	K     *int   `json:"k,omitempty"`
}

// RetrieveHit is one ranked record.
type RetrieveHit struct {
	Position int           `json:"position"`
	Distance float32       `json:"distance"`
	Record   domcat.Record `json:"record"`
}

// RetrieveResponse is the body returned by POST /v1/retrieve.
type RetrieveResponse struct {
	Results []RetrieveHit `json:"results"`
	Count   int           `json:"count"`
}

// Retrieve handles POST /v1/retrieve.
func (s *Server) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	k := s.defaultTopK
	if req.K != nil {
		k = *req.K
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.retrieval.Retrieve(ctx, req.Query, k)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	hits := make([]RetrieveHit, len(res))
	for i, h := range res {
		hits[i] = RetrieveHit{Position: h.Position, Distance: h.Distance, Record: h.Record}
	}
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, RetrieveResponse{Results: hits, Count: len(hits)})
}

// ReloadCatalog handles POST /v1/catalog/reload.
func (s *Server) ReloadCatalog(w http.ResponseWriter, r *http.Request) {
	stats, err := s.retrieval.Reload(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// BeginMessage handles GET /v1/begin.
func (s *Server) BeginMessage(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.conversation.BeginMessage())
}

// Respond handles POST /v1/responses. Fragments are streamed as newline-delimited JSON.
// Errors before the first fragment are reported with a status code; later errors end the stream.
func (s *Server) Respond(w http.ResponseWriter, r *http.Request) {
	var req conversation.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	started := false

	emit := func(f conversation.Fragment) error {
		if !started {
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if err := enc.Encode(f); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	if err := s.conversation.Respond(r.Context(), req, emit); err != nil {
		if started {
			logger.FromContextOr(r.Context(), s.logger).Warn("Response stream aborted",
				zap.Int("response_id", req.ResponseID), zap.Error(err))
			return
		}
		s.handleDomainError(w, r, err)
	}
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status healthuc.Status                 `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{Status: report.Status, Checks: report.Checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, safeDomainMessage(err, sentinel))
		return true
	}
}

func timeoutHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	writeError(w, http.StatusGatewayTimeout, ErrorCodeTimeout, "request timed out")
	return true
}

// safeDomainMessage exposes schema and argument details; other sentinels report only their own text.
func safeDomainMessage(err, sentinel error) string {
	switch {
	case errors.Is(sentinel, domain.ErrSchema), errors.Is(sentinel, domain.ErrInvalidArgument):
		var se *domain.SchemaError
		if errors.As(err, &se) {
			return se.Error()
		}
		if errors.Is(sentinel, domain.ErrInvalidArgument) {
			return err.Error()
		}
	}
	return sentinel.Error()
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
