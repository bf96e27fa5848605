package cortex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

// Option configures the Client.
type Option interface {
	apply(*Client)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*Client)

func (f optionFunc) apply(c *Client) { f(c) }

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) Option {
	return optionFunc(func(c *Client) {
		c.apiKey = key
	})
}

// WithHTTPClient sets a custom HTTP client (timeouts, transport, proxies).
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *Client) {
		c.httpClient = hc
	})
}

// WithTimeout overrides the default per-request timeout. Ignored when a
// custom HTTP client is supplied.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *Client) {
		c.timeout = d
	})
}

// Client talks to a cortex server.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a cortex API client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: defaultTimeout,
	}
	for _, o := range opts {
		o.apply(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c
}

// Process runs one note through a task on the server.
func (c *Client) Process(ctx context.Context, req ProcessRequest) (ProcessingResult, error) {
	var result ProcessingResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/process", req, &result); err != nil {
		return ProcessingResult{}, err
	}
	return result, nil
}

// StoreNote persists a note and returns its id.
func (c *Client) StoreNote(ctx context.Context, req StoreNoteRequest) (string, error) {
	var resp struct {
		NoteID string `json:"note_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/notes", req, &resp); err != nil {
		return "", err
	}
	return resp.NoteID, nil
}

// Search returns the notes most similar to the query.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]SearchHit, error) {
	var resp struct {
		Results []SearchHit `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/search", req, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Tasks lists the task names configured on the server.
func (c *Client) Tasks(ctx context.Context) ([]string, error) {
	var resp struct {
		Tasks []string `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// Health checks server health. A degraded server returns the status report
// without an error; transport failures return an error.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return HealthStatus{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("cortex: health request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// 503 still carries the report body
	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return HealthStatus{}, fmt.Errorf("cortex: decode health response: %w", err)
	}
	return status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("cortex: marshal request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cortex: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return parseAPIError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("cortex: decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("cortex: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func parseAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || json.Unmarshal(raw, apiErr) != nil || apiErr.Code == "" {
		apiErr.Code = "unknown"
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
