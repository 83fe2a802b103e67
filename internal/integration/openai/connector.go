package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/repoqa/repoqa-backend/internal/config"
	"github.com/repoqa/repoqa-backend/internal/entity"
	pkgRetry "github.com/repoqa/repoqa-backend/internal/pkg/retry"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var errEmptyResponse = errors.New("empty response from model")

// Connector talks to an OpenAI-compatible API for embeddings and chat completions
type Connector struct {
	client *openai.Client
	config config.OpenAIConfig
	logger *zap.Logger
}

func NewConnector(cfg config.OpenAIConfig, logger *zap.Logger) *Connector {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Connector{
		client: openai.NewClientWithConfig(clientCfg),
		config: cfg,
		logger: logger,
	}
}

// Model returns the embedding model every vector of this connector comes from.
func (c *Connector) Model() string {
	return c.config.EmbeddingModel
}

// Embed returns the embedding vector of text.
func (c *Connector) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.config.EmbeddingModel),
		Input: []string{text},
	}

	var vector []float32
	err := c.withRetry(ctx, "embedding", func(ctx context.Context) error {
		resp, err := c.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
			return fmt.Errorf("%w: no embedding data", errEmptyResponse)
		}
		vector = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}

	ctxzap.Debug(ctx, "embedding created", zap.Int("dimensions", len(vector)))
	return vector, nil
}

// Complete asks the chat model to answer req.Question with req.Context
// substituted into the system prompt.
func (c *Connector) Complete(ctx context.Context, req entity.CompletionRequest) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       c.config.ChatModel,
		Temperature: req.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.Question},
		},
	}

	var answer string
	err := c.withRetry(ctx, "chat_completion", func(ctx context.Context) error {
		resp, err := c.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%w: no choices", errEmptyResponse)
		}
		answer = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}

	ctxzap.Debug(ctx, "chat completion created", zap.Int("answer_length", len(answer)))
	return answer, nil
}

func (c *Connector) withRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	return c.config.Retry.Do(ctx, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && !isRetryable(err) {
			return pkgRetry.Permanent(err)
		}
		return err
	}, func(attempt uint, err error) {
		ctxzap.Warn(ctx, "OpenAI request failed",
			zap.String("operation", operation),
			zap.Uint("attempt", attempt),
			zap.Error(err),
		)
	})
}

func isRetryable(err error) bool {
	if errors.Is(err, errEmptyResponse) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= http.StatusInternalServerError
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 0 || reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= http.StatusInternalServerError
	}

	return false
}
