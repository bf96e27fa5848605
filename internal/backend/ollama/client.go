// Package ollama implements the local inference backend over the Ollama HTTP
// API: {model, prompt}-shaped requests returning generated text.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/cortexnotes/cortex/internal/backend"
	"github.com/cortexnotes/cortex/internal/domain"
)

// Compile-time check: Client implements backend.Backend.
var _ backend.Backend = (*Client)(nil)

// Config holds local backend connection settings.
type Config struct {
	BaseURL        string // e.g. http://localhost:11434
	Model          string
	EmbeddingModel string
	HTTPClient     *http.Client
}

// Client is the local inference backend.
type Client struct {
	baseURL        string
	model          string
	embeddingModel string
	client         *http.Client
}

// New creates a local backend client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:        cfg.BaseURL,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		client:         httpClient,
	}
}

// Kind implements backend.Backend.
func (c *Client) Kind() domain.BackendKind { return domain.BackendLocal }

// EmbeddingModel implements backend.Backend.
func (c *Client) EmbeddingModel() string { return c.embeddingModel }

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate sends a completion request to /api/generate.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var out generateResponse
	err := c.post(ctx, "/api/generate", generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.Response == "" {
		return "", fmt.Errorf("empty completion: %w", domain.ErrInvalidResponse)
	}
	return out.Response, nil
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed sends an embedding request to /api/embed.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var out embedResponse
	err := c.post(ctx, "/api/embed", embedRequest{
		Model: c.embeddingModel,
		Input: text,
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("empty embedding: %w", domain.ErrInvalidResponse)
	}
	return out.Embeddings[0], nil
}

// HealthCheck verifies server availability via /api/tags (free endpoint).
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("local backend status %d: %w", resp.StatusCode, domain.ErrBackendUnavailable)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("local backend status %d: %s: %w",
				resp.StatusCode, string(raw), domain.ErrBackendUnavailable)
		}
		return fmt.Errorf("local backend status %d: %s: %w",
			resp.StatusCode, string(raw), domain.ErrInvalidResponse)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", domain.ErrInvalidResponse)
	}
	return nil
}

// classifyTransportError maps network failures to the domain taxonomy.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("local backend: %w", domain.ErrBackendTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("local backend: %w", domain.ErrCancelled)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("local backend: %w", domain.ErrBackendTimeout)
	}
	return fmt.Errorf("local backend: %v: %w", err, domain.ErrBackendUnavailable)
}
