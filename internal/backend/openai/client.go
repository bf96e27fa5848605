// Package openai implements the cloud fallback backend over an
// OpenAI-compatible API, invoked only when the local backend fails.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cortexnotes/cortex/internal/backend"
	"github.com/cortexnotes/cortex/internal/domain"
)

// Compile-time check: Client implements backend.Backend.
var _ backend.Backend = (*Client)(nil)

// Config holds cloud backend settings.
type Config struct {
	APIKey         string
	BaseURL        string // empty = api.openai.com
	Model          string
	EmbeddingModel string
}

// Client is the cloud fallback backend.
type Client struct {
	client         *openai.Client
	model          string
	embeddingModel string
}

// New creates a cloud backend client.
func New(cfg Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Client{
		client:         openai.NewClientWithConfig(clientCfg),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
	}
}

// Kind implements backend.Backend.
func (c *Client) Kind() domain.BackendKind { return domain.BackendCloud }

// EmbeddingModel implements backend.Backend.
func (c *Client) EmbeddingModel() string { return c.embeddingModel }

// Generate sends a chat completion with the prompt as a single user message.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", parseAPIError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty completion response: %w", domain.ErrInvalidResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed computes an embedding for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          openai.EmbeddingModel(c.embeddingModel),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	})
	if err != nil {
		return nil, parseAPIError(err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding response: %w", domain.ErrInvalidResponse)
	}
	return resp.Data[0].Embedding, nil
}

// parseAPIError maps API failures to the domain taxonomy so the chain can
// decide between retry, failover, and immediate surfacing.
func parseAPIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("cloud backend: %w", domain.ErrBackendTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("cloud backend: %w", domain.ErrCancelled)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("cloud API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, classifyStatus(apiErr.HTTPStatusCode))
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("cloud API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), classifyStatus(reqErr.HTTPStatusCode))
	}

	return fmt.Errorf("cloud backend: %v: %w", err, domain.ErrBackendUnavailable)
}

func classifyStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ErrAuthRejected
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return domain.ErrBackendUnavailable
	default:
		return domain.ErrInvalidResponse
	}
}
