// Package llamacloud is a typed HTTP client for the LlamaCloud parse, files and
// extraction APIs. Every operation is a single request: nothing is retried here.
package llamacloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single HTTP call. It is unrelated to how long a job may take.
const DefaultTimeout = 2 * time.Minute

// maxErrorBody caps how much of a failed response body is kept in an error.
const maxErrorBody = 2048

// Scope carries the optional tenant identifiers sent with a request.
type Scope struct {
	OrganizationID string
	ProjectID      string
}

// Or returns s with any empty field taken from fallback.
func (s Scope) Or(fallback Scope) Scope {
	if s.OrganizationID == "" {
		s.OrganizationID = fallback.OrganizationID
	}
	if s.ProjectID == "" {
		s.ProjectID = fallback.ProjectID
	}
	return s
}

// apply adds the scope as query parameters. Empty identifiers are omitted.
func (s Scope) apply(q url.Values) {
	if s.OrganizationID != "" {
		q.Set("organization_id", s.OrganizationID)
	}
	if s.ProjectID != "" {
		q.Set("project_id", s.ProjectID)
	}
}

// setHeaders mirrors the scope into the tenant headers.
func (s Scope) setHeaders(h http.Header) {
	if s.OrganizationID != "" {
		h.Set("X-LLM-Organization", s.OrganizationID)
	}
	if s.ProjectID != "" {
		h.Set("X-LLM-Project", s.ProjectID)
	}
}

// Config configures a Client.
type Config struct {
	BaseURL         string
	APIKey          string
	Scope           Scope
	Timeout         time.Duration // per call
	ParseResultType string        // "markdown" or "text"
}

// Client talks to LlamaCloud.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// New creates a Client. A nil httpClient or logger gets a default.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ParseResultType == "" {
		cfg.ParseResultType = "markdown"
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: logger,
	}
}

// ErrMissingAPIKey is returned by Configured when no API key is set.
var ErrMissingAPIKey = errors.New("LLAMACLOUD_API_KEY is not set")

// Configured reports whether the client has the credentials it needs to make calls.
func (c *Client) Configured() error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// DefaultScope returns the globally configured scope.
func (c *Client) DefaultScope() Scope {
	return c.cfg.Scope
}

// request describes one call to the API.
type request struct {
	method      string
	path        string
	scope       Scope
	body        io.Reader
	contentType string
}

// do executes a request under the per-call timeout and returns the response body and
// content type. Non-2xx responses yield a *ResponseError.
func (c *Client) do(ctx context.Context, r request) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	endpoint, err := url.Parse(c.cfg.BaseURL + r.path)
	if err != nil {
		return nil, "", fmt.Errorf("build url: %w", err)
	}
	q := endpoint.Query()
	r.scope.apply(q)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, r.method, endpoint.String(), r.body)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}

	r.scope.setHeaders(req.Header)
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	start := time.Now()
	c.logger.Debug("llamacloud.http.request", "method", r.method, "path", r.path)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("llamacloud.http.send_error",
			"method", r.method, "path", r.path, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, "", err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("llamacloud.http.response_body_close_error", "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read response body: %w", err)
	}

	c.logger.Debug("llamacloud.http.response",
		"method", r.method, "path", r.path,
		"status", resp.StatusCode, "bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		body := strings.TrimSpace(string(raw))
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return raw, "", &ResponseError{StatusCode: resp.StatusCode, Body: body}
	}
	return raw, resp.Header.Get("Content-Type"), nil
}

// getJSON performs a GET and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, path string, scope Scope, out any) ([]byte, error) {
	raw, _, err := c.do(ctx, request{method: http.MethodGet, path: path, scope: scope})
	if err != nil {
		return nil, err
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return raw, fmt.Errorf("decode response: %w", err)
		}
	}
	return raw, nil
}

// postJSON encodes body as JSON, POSTs it and decodes the response into out.
func (c *Client) postJSON(ctx context.Context, path string, scope Scope, body, out any) error {
	bs, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	raw, _, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        path,
		scope:       scope,
		body:        bytes.NewReader(bs),
		contentType: "application/json",
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// idResponse is the common envelope for calls that create a resource.
type idResponse struct {
	ID string `json:"id"`
}
