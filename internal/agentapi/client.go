// Package agentapi is the HTTP transport against the agent backend: the
// one-shot /query fetch, the /stream SSE channel, and the liveness probe.
package agentapi

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	queryPath  = "/query"
	streamPath = "/stream"

	maxErrorBodyBytes = 2048
)

// Client talks to one agent backend instance.
type Client struct {
	baseURL    string
	http       *http.Client
	retryDelay time.Duration
	logger     *log.Logger
}

// Option adjusts a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRetryDelay sets the pause before the stream channel reconnects after a
// transport drop.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// WithLogger replaces the default [AGENT] logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient builds a client for the backend at baseURL. Request timeout
// applies to one-shot fetches only; the stream connection lives until its
// context is cancelled.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: timeout},
		retryDelay: 2 * time.Second,
		logger:     log.New(log.Writer(), "[AGENT] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) endpoint(path, query, sessionID string) string {
	params := url.Values{}
	params.Set("query", query)
	if sessionID != "" {
		params.Set("session_id", sessionID)
	}
	return c.baseURL + path + "?" + params.Encode()
}

// Query performs the one-shot fetch and returns the raw response document.
func (c *Client) Query(ctx context.Context, query, sessionID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(queryPath, query, sessionID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("query failed: %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}
	return body, nil
}

// Ping probes backend liveness with a throwaway query. Any response with a
// non-error status counts as online.
func (c *Client) Ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(queryPath, "ping", ""), nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
	return resp.StatusCode < http.StatusBadRequest
}
