// Package remote is the HTTP client for the remote project store and its
// analytics endpoints.
package remote

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

	"github.com/sethvargo/go-retry"

	"github.com/hyperengineering/portfolio/internal/types"
)

const (
	projectPath   = "/project"
	analyticsPath = "/analytics"
)

// Client talks to the remote project store over REST.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries uint64
	retryBase  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends the key as a bearer token on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRetry configures retries for idempotent reads. Mutations are never retried.
func WithRetry(maxRetries uint64, base time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryBase = base
	}
}

// NewClient creates a client for the store rooted at baseURL
// (e.g. http://localhost:3000/api).
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
		retryBase:  200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListProjects fetches every project (GET /project).
func (c *Client) ListProjects(ctx context.Context) ([]types.Project, error) {
	var projects []types.Project
	if err := c.get(ctx, projectPath, &projects); err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []types.Project{}
	}
	return projects, nil
}

// GetProject fetches a single project (GET /project/{id}).
func (c *Client) GetProject(ctx context.Context, id string) (*types.Project, error) {
	var p types.Project
	if err := c.get(ctx, projectPath+"/"+url.PathEscape(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject creates a project (POST /project) and returns the canonical record.
func (c *Client) CreateProject(ctx context.Context, draft types.ProjectDraft) (*types.Project, error) {
	var p types.Project
	if err := c.do(ctx, http.MethodPost, projectPath, draft, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProject replaces a project (PUT /project/{id}) and returns the canonical record.
func (c *Client) UpdateProject(ctx context.Context, id string, draft types.ProjectDraft) (*types.Project, error) {
	var p types.Project
	if err := c.do(ctx, http.MethodPut, projectPath+"/"+url.PathEscape(id), draft, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProject deletes a project (DELETE /project/{id}).
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, projectPath+"/"+url.PathEscape(id), nil, nil)
}

// Graphics fetches server-computed analytics (GET /analytics/graphics).
func (c *Client) Graphics(ctx context.Context) (*types.GraphicsData, error) {
	var g types.GraphicsData
	if err := c.get(ctx, analyticsPath+"/graphics", &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// ProjectAnalysis fetches the server-side analysis of one project (GET /analytics/{id}).
func (c *Client) ProjectAnalysis(ctx context.Context, id string) (*types.AnalysisResponse, error) {
	var a types.AnalysisResponse
	if err := c.get(ctx, analyticsPath+"/"+url.PathEscape(id), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// get performs an idempotent read with retry on transport errors and 502/503/504.
func (c *Client) get(ctx context.Context, path string, out any) error {
	if c.maxRetries == 0 {
		return c.do(ctx, http.MethodGet, path, nil, out)
	}

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.do(ctx, http.MethodGet, path, nil, out)
		var re *RemoteError
		if errors.As(err, &re) && re.retryable() {
			slog.Debug("retrying remote read",
				"component", "remote",
				"path", path,
				"status", re.StatusCode,
				"error", re.Message,
			)
			return retry.RetryableError(err)
		}
		return err
	})
}

// do sends a single request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RemoteError{Message: "Unable to reach the project service", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RemoteError{Message: "Unable to read the project service response", Err: err}
	}

	slog.Debug("remote request",
		"component", "remote",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &RemoteError{
			StatusCode: resp.StatusCode,
			Message:    "Invalid response from the project service",
			Err:        err,
		}
	}
	return nil
}
