// Package conversation drafts agent responses: it retrieves catalog context for the
// caller's latest utterance, assembles the prompt and relays the completion stream.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/skurag/internal/domain"
	domcat "github.com/kailas-cloud/skurag/internal/domain/catalog"
	"github.com/kailas-cloud/skurag/internal/domain/conversation"
	"github.com/kailas-cloud/skurag/internal/logger"
	"github.com/kailas-cloud/skurag/internal/metrics"
)

// DefaultGreeting opens every call.
const DefaultGreeting = "Hey there, I'm your shopping assistant. What are you looking for today?"

// Retriever returns catalog records relevant to a free-text query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) (domcat.Result, error)
}

// Assembler builds the completion prompt for a turn.
type Assembler interface {
	Assemble(req conversation.Request, records domcat.Result) []conversation.Message
}

// Config tunes the turn service.
type Config struct {
	Greeting         string
	Model            string
	TopK             int
	RetrievalTimeout time.Duration // 0 disables the per-turn retrieval deadline
}

// Service drafts streamed agent responses.
type Service struct {
	retriever Retriever
	assembler Assembler
	completer conversation.Completer
	cfg       Config
	logger    *zap.Logger
}

// New creates a turn service.
func New(
	retriever Retriever, assembler Assembler, completer conversation.Completer,
	cfg Config, logger *zap.Logger,
) *Service {
	if cfg.Greeting == "" {
		cfg.Greeting = DefaultGreeting
	}
	if cfg.TopK < 1 {
		cfg.TopK = 5
	}
	return &Service{
		retriever: retriever,
		assembler: assembler,
		completer: completer,
		cfg:       cfg,
		logger:    logger,
	}
}

// BeginMessage returns the opening fragment of a call.
func (s *Service) BeginMessage() conversation.Fragment {
	return conversation.Fragment{
		ResponseID:      0,
		Content:         s.cfg.Greeting,
		ContentComplete: true,
		EndCall:         false,
	}
}

// Respond streams the agent's reply to req through emit: one fragment per non-empty
// completion delta, then a terminal fragment with ContentComplete set.
// Retrieval failures degrade to a prompt without catalog context.
// If ctx ends mid-stream, the completion is closed and ctx.Err() is returned
// without emitting the terminal fragment.
func (s *Service) Respond(
	ctx context.Context, req conversation.Request, emit func(conversation.Fragment) error,
) error {
	if !req.InteractionType.Valid() {
		return fmt.Errorf("%w: unknown interaction type %q", domain.ErrInvalidArgument, req.InteractionType)
	}

	log := logger.FromContextOr(ctx, s.logger).With(zap.Int("response_id", req.ResponseID))

	records := s.retrieveContext(ctx, log, req)
	messages := s.assembler.Assemble(req, records)

	stream, err := s.completer.Stream(ctx, s.cfg.Model, messages)
	if err != nil {
		metrics.CompletionStreamsTotal.WithLabelValues(s.cfg.Model, "error").Inc()
		return fmt.Errorf("open completion: %w", err)
	}
	defer func() { _ = stream.Close() }()

	fragments, err := s.relay(ctx, req.ResponseID, stream, emit)
	if err != nil {
		status := "error"
		if ctx.Err() != nil {
			status = "canceled"
			err = ctx.Err()
		}
		metrics.CompletionStreamsTotal.WithLabelValues(s.cfg.Model, status).Inc()
		log.Info("Response stream stopped", zap.String("status", status), zap.Int("fragments", fragments), zap.Error(err))
		return err
	}

	if err := emit(conversation.Fragment{ResponseID: req.ResponseID, ContentComplete: true}); err != nil {
		metrics.CompletionStreamsTotal.WithLabelValues(s.cfg.Model, "error").Inc()
		return fmt.Errorf("emit final fragment: %w", err)
	}

	metrics.CompletionStreamsTotal.WithLabelValues(s.cfg.Model, "success").Inc()
	log.Debug("Response streamed",
		zap.Int("fragments", fragments),
		zap.Int("context_records", len(records)),
	)
	return nil
}

func (s *Service) relay(
	ctx context.Context, responseID int, stream conversation.Stream, emit func(conversation.Fragment) error,
) (int, error) {
	var n int
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("receive completion: %w", err)
		}
		if chunk.Final {
			return n, nil
		}
		if chunk.Content == "" {
			continue
		}

		if err := emit(conversation.Fragment{ResponseID: responseID, Content: chunk.Content}); err != nil {
			return n, fmt.Errorf("emit fragment: %w", err)
		}
		n++
		metrics.CompletionFragmentsTotal.WithLabelValues(s.cfg.Model).Inc()
	}
}

// retrieveContext never fails the turn: errors are logged and yield no context.
func (s *Service) retrieveContext(ctx context.Context, log *zap.Logger, req conversation.Request) domcat.Result {
	query := req.LatestUserUtterance()
	if strings.TrimSpace(query) == "" {
		return nil
	}

	if s.cfg.RetrievalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RetrievalTimeout)
		defer cancel()
	}

	records, err := s.retriever.Retrieve(ctx, query, s.cfg.TopK)
	if err != nil {
		log.Warn("Retrieval failed, responding without catalog context", zap.Error(err))
		return nil
	}
	return records
}
