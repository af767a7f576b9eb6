// Package client provides a typed HTTP client for the Scrapouille
// extraction API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultBaseURL is used when no endpoint is configured.
const DefaultBaseURL = "http://localhost:8000"

// ErrUnreachable wraps transport-level failures so callers can show an
// "API offline" state instead of a raw network error.
var ErrUnreachable = errors.New("extraction API unreachable")

// Client is an HTTP client for the extraction service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient swaps the underlying http.Client (used in tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a new API client.
// If baseURL is empty, uses the SCRAPOUILLE_API_URL env var or defaults to
// localhost:8000. Timeout can be configured via SCRAPOUILLE_CLIENT_TIMEOUT
// (default 2m, generous enough for slow LLM extractions).
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("SCRAPOUILLE_API_URL")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := 2 * time.Minute
	if t := os.Getenv("SCRAPOUILLE_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured endpoint.
func (c *Client) BaseURL() string { return c.baseURL }

// apiError is FastAPI's error envelope.
type apiError struct {
	Detail json.RawMessage `json:"detail"`
}

// do sends one JSON request and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && len(apiErr.Detail) > 0 {
			return fmt.Errorf("server error: %s - %s", resp.Status, string(apiErr.Detail))
		}
		return fmt.Errorf("server error: %s - %s", resp.Status, string(data))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// Scrape runs a single-URL extraction. The service reports per-scrape
// failures inside the response body (Success=false plus Error), so a nil
// error here only means the HTTP exchange worked.
func (c *Client) Scrape(ctx context.Context, req ScrapeRequest) (*ScrapeResponse, error) {
	var resp ScrapeResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/scrape", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health fetches the service health status.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.do(ctx, http.MethodGet, "/health", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetConfig fetches the service-side configuration.
func (c *Client) GetConfig(ctx context.Context) (*RemoteConfig, error) {
	var cfg RemoteConfig
	if err := c.do(ctx, http.MethodGet, "/api/v1/config", nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UpdateConfig applies a partial update to the service-side configuration
// and returns the resulting config.
func (c *Client) UpdateConfig(ctx context.Context, update RemoteConfigUpdate) (*RemoteConfig, error) {
	var cfg RemoteConfig
	if err := c.do(ctx, http.MethodPut, "/api/v1/config", update, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
