package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIError represents an error response from the admin API.
type APIError struct {
	StatusCode int    `json:"status"`
	Code       string `json:"Code"`
	Message    string `json:"Message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("admin API returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("%s %s", e.Code, e.Message)
}

// AdminClient talks to a cfgd admin API. Responses are returned as raw
// JSON so they can be printed or filtered without a typed model.
type AdminClient struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures an admin client.
type ClientOption func(*AdminClient)

// WithTimeout sets the HTTP timeout for the client.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *AdminClient) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *AdminClient) {
		c.httpClient = hc
	}
}

// NewAdminClient creates a client for the admin API at baseURL, e.g.
// http://localhost:9089.
func NewAdminClient(baseURL string, opts ...ClientOption) *AdminClient {
	c := &AdminClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the whole document, every object of one type, or one named
// object, depending on which arguments are set.
func (c *AdminClient) Get(ctx context.Context, objectType, name string) ([]byte, error) {
	path := "/configuration/"
	if objectType != "" {
		path += url.PathEscape(objectType) + "/"
		if name != "" {
			path += url.PathEscape(name)
		}
	}
	return c.do(ctx, http.MethodGet, path, nil)
}

// Apply posts a configuration document and returns the effective objects.
func (c *AdminClient) Apply(ctx context.Context, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPost, "/configuration", body)
}

// Delete removes one named object.
func (c *AdminClient) Delete(ctx context.Context, objectType, name string) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, "/configuration/"+url.PathEscape(objectType)+"/"+url.PathEscape(name), nil)
}

// Restart reloads the server configuration from durable state.
func (c *AdminClient) Restart(ctx context.Context) ([]byte, error) {
	return c.do(ctx, http.MethodPost, "/service/restart", []byte(`{"Service":"Server"}`))
}

// Status returns the service status.
func (c *AdminClient) Status(ctx context.Context) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/service/status", nil)
}

// DocumentSchema returns the JSON Schema of configuration documents.
func (c *AdminClient) DocumentSchema(ctx context.Context) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/schema.json", nil)
}

// OpenAPI returns the OpenAPI description of the admin API.
func (c *AdminClient) OpenAPI(ctx context.Context) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/openapi.json", nil)
}

// EventsURL returns the WebSocket URL of the change stream.
func (c *AdminClient) EventsURL(types []string) string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	u += "/events"
	if len(types) > 0 {
		q := url.Values{}
		for _, t := range types {
			q.Add("type", t)
		}
		u += "?" + q.Encode()
	}
	return u
}

func (c *AdminClient) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to admin API at %s: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Code == "" {
			apiErr = &APIError{Message: strings.TrimSpace(string(data))}
		}
		apiErr.StatusCode = resp.StatusCode
		return nil, apiErr
	}
	return data, nil
}
