// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

// Package upstream performs JSON GET calls against the external data sources
// with a per-call timeout, per-host rate limiting and coded errors.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	l5err "github.com/l5-scheduler/l5/pkg/errors"
)

// DefaultTimeout bounds a single upstream call.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of a failed response body is kept in the error.
const maxErrorBody = 512

// Options configures a Client.
type Options struct {
	Timeout   time.Duration
	RateLimit float64 // requests per second per host, 0 disables limiting
	Burst     int
	Transport http.RoundTripper
}

// Client issues GET requests and decodes JSON bodies.
type Client struct {
	http    *http.Client
	timeout time.Duration
}

// NewClient creates a Client. A zero Timeout selects DefaultTimeout.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if opts.RateLimit > 0 {
		transport = NewRateLimitedTransport(transport, opts.RateLimit, opts.Burst)
	}
	return &Client{
		http:    &http.Client{Transport: transport},
		timeout: opts.Timeout,
	}
}

// RequestOption customises a single request.
type RequestOption func(*http.Request)

// WithQuery merges values into the request query string.
func WithQuery(values url.Values) RequestOption {
	return func(r *http.Request) {
		q := r.URL.Query()
		for k, vs := range values {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		r.URL.RawQuery = q.Encode()
	}
}

// WithHeader sets a request header. Empty values are skipped.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		if value != "" {
			r.Header.Set(key, value)
		}
	}
}

// WithBearer sets an Authorization bearer token.
func WithBearer(token string) RequestOption {
	return WithHeader("Authorization", "Bearer "+token)
}

// WithBasicAuth sets HTTP basic credentials.
func WithBasicAuth(username, password string) RequestOption {
	return func(r *http.Request) {
		r.SetBasicAuth(username, password)
	}
}

// GetJSON fetches rawURL and decodes the JSON response into dest.
// Failures carry one of the upstream.* codes so callers can classify them.
func (c *Client) GetJSON(ctx context.Context, rawURL string, dest any, opts ...RequestOption) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return l5err.Wrap(err, l5err.CodeUpstreamRequestInvalid, "building request", l5err.FieldURL(rawURL))
	}
	req.Header.Set("Accept", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if l5err.CodeOf(err) != "" {
			return l5err.With(err, l5err.FieldURL(redact(req.URL)))
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return l5err.Wrap(err, l5err.CodeUpstreamRequestTimeout, "request timed out", l5err.FieldURL(redact(req.URL)))
		}
		return l5err.Wrap(err, l5err.CodeUpstreamRequestFailure, "request failed", l5err.FieldURL(redact(req.URL)))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		_, _ = io.Copy(io.Discard, resp.Body)
		return l5err.New(l5err.CodeUpstreamResponseUnauthorized, "upstream rejected credentials",
			l5err.FieldURL(redact(req.URL)), l5err.FieldStatus(resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return l5err.New(l5err.CodeUpstreamResponseStatus, "upstream returned "+resp.Status,
			l5err.FieldURL(redact(req.URL)), l5err.FieldStatus(resp.StatusCode), l5err.Field("body", string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return l5err.Wrap(err, l5err.CodeUpstreamRequestTimeout, "reading response timed out", l5err.FieldURL(redact(req.URL)))
		}
		return l5err.Wrap(err, l5err.CodeUpstreamResponseDecode, "invalid JSON response", l5err.FieldURL(redact(req.URL)))
	}
	return nil
}

// redact drops the query string so tokens and time windows stay out of logs.
func redact(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	c.User = nil
	return c.String()
}
