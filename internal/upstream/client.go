// Package upstream implements a thin wrapper around one HTTP request/response
// to a named backend, with a per-call timeout and a uniform outcome taxonomy.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/carrental/gateway/internal/domain"
)

// Client performs HTTP calls against a single named backend.
type Client struct {
	name    string
	baseURL string
	hc      *http.Client
}

// New constructs a Client for the named backend with the given base URL and
// per-call timeout. All outbound calls are issued through otelhttp so that
// each call produces a trace span.
func New(name, baseURL string, timeout time.Duration) *Client {
	return &Client{
		name:    name,
		baseURL: baseURL,
		hc: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Name returns the backend name this client talks to (used as the breaker name).
func (c *Client) Name() string { return c.name }

// Do issues one HTTP request. If body is non-nil it is JSON-encoded as the
// request payload. If out is non-nil and the response is a 2xx, the response
// body is JSON-decoded into out.
//
// Do returns the HTTP status code (0 on transport failure) and an error that
// is nil on 2xx, wraps domain.ErrUpstreamTransport on connection/timeout
// failures, or wraps domain.ErrUpstreamApplication on a well-formed non-2xx
// response.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) (int, error) {
	tr := otel.Tracer("upstream." + c.name)
	ctx, span := tr.Start(ctx, method+" "+path)
	defer span.End()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("%s: marshal request: %w", c.name, domain.ErrInternal)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("%s: build request: %w", c.name, domain.ErrInternal)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %v", c.name, domain.ErrUpstreamTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("%s: %w: status %d", c.name, domain.ErrUpstreamApplication, resp.StatusCode)
	}

	if out != nil {
		if resp.StatusCode == http.StatusNoContent {
			return resp.StatusCode, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("%s: %w: decode response: %v", c.name, domain.ErrUpstreamApplication, err)
		}
	}
	return resp.StatusCode, nil
}
