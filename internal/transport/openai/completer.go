package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/skurag/internal/domain"
	"github.com/kailas-cloud/skurag/internal/domain/conversation"
)

// Completer streams chat completions from an OpenAI-compatible API.
type Completer struct {
	client *openai.Client
	user   string
	logger *zap.Logger
}

var _ conversation.Completer = (*Completer)(nil)

// NewCompleter creates a streaming chat completion client. cfg.Model is ignored;
// the model is chosen per call.
func NewCompleter(cfg *Config) *Completer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Completer{client: newClient(cfg), user: cfg.User, logger: logger}
}

// Stream opens a chat completion stream.
func (c *Completer) Stream(
	ctx context.Context, model string, messages []conversation.Message,
) (conversation.Stream, error) {
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toChatMessages(messages),
		Stream:   true,
		User:     c.user,
	}

	s, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, parseAPIError(err, domain.ErrCompletionProviderError)
	}
	return &chatStream{inner: s}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Completer) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func toChatMessages(msgs []conversation.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// chatStream adapts go-openai's stream to conversation.Stream.
type chatStream struct {
	inner *openai.ChatCompletionStream
	done  bool
}

// Recv skips deltas without content. When the provider finishes, it returns one
// Final chunk and io.EOF afterwards.
func (s *chatStream) Recv() (conversation.Chunk, error) {
	if s.done {
		return conversation.Chunk{}, io.EOF
	}
	for {
		resp, err := s.inner.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			return conversation.Chunk{Final: true}, nil
		}
		if err != nil {
			return conversation.Chunk{}, parseAPIError(err, domain.ErrCompletionProviderError)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		return conversation.Chunk{Content: resp.Choices[0].Delta.Content}, nil
	}
}

func (s *chatStream) Close() error {
	s.done = true
	if err := s.inner.Close(); err != nil {
		return fmt.Errorf("close stream: %w", err)
	}
	return nil
}
