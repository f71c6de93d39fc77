// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package upstream

import (
	"net/http"
	"sync"

	l5err "github.com/l5-scheduler/l5/pkg/errors"
	"golang.org/x/time/rate"
)

// RateLimitedTransport delays outgoing requests so each upstream host sees
// at most rps requests per second, with the given burst.
type RateLimitedTransport struct {
	base  http.RoundTripper
	rps   rate.Limit
	burst int

	mu     sync.Mutex
	byHost map[string]*rate.Limiter
}

// NewRateLimitedTransport wraps base. A burst below one is raised to one.
func NewRateLimitedTransport(base http.RoundTripper, rps float64, burst int) *RateLimitedTransport {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedTransport{
		base:   base,
		rps:    rate.Limit(rps),
		burst:  burst,
		byHost: make(map[string]*rate.Limiter),
	}
}

// RoundTrip waits for the host's limiter, honouring request cancellation.
func (t *RateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter(req.URL.Host).Wait(req.Context()); err != nil {
		return nil, l5err.Wrap(err, l5err.CodeUpstreamRequestTimeout, "waiting for rate limiter",
			l5err.Field("host", req.URL.Host))
	}
	return t.base.RoundTrip(req)
}

func (t *RateLimitedTransport) limiter(host string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.byHost[host]
	if !ok {
		l = rate.NewLimiter(t.rps, t.burst)
		t.byHost[host] = l
	}
	return l
}
