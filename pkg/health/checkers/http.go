// Package checkers holds reusable health.Check implementations.
package checkers

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPChecker probes an HTTP endpoint. By default only 5xx answers count as
// failures; a strict checker also rejects every non-2xx status.
type HTTPChecker struct {
	url    string
	name   string
	strict bool
	client *http.Client
}

type HTTPOption func(*HTTPChecker)

// WithClient replaces the default client, which has a 10 second timeout.
func WithClient(c *http.Client) HTTPOption {
	return func(h *HTTPChecker) { h.client = c }
}

// Strict makes any non-2xx status a failure.
func Strict() HTTPOption {
	return func(h *HTTPChecker) { h.strict = true }
}

// NewHTTPChecker returns a checker for url. An empty name falls back to the url.
func NewHTTPChecker(url, name string, opts ...HTTPOption) *HTTPChecker {
	if name == "" {
		name = url
	}
	h := &HTTPChecker{
		url:    url,
		name:   name,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTPChecker) Name() string {
	return h.name
}

func (h *HTTPChecker) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("unhealthy status code: %d", resp.StatusCode)
	case h.strict && (resp.StatusCode < 200 || resp.StatusCode > 299):
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}
