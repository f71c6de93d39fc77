// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

// Package freshness tracks, per upstream source, when the data was last
// confirmed against that source.
package freshness

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/l5-scheduler/l5/internal/metrics"
	l5err "github.com/l5-scheduler/l5/pkg/errors"
	pkgfreshness "github.com/l5-scheduler/l5/pkg/freshness"
)

// Source names an upstream signal.
type Source string

const (
	SourceNESO     Source = "neso"
	SourceWattTime Source = "watttime"
	SourceFleet    Source = "fleet"
)

// NilPolicy decides what Update(nil) means for a tracker.
type NilPolicy int

const (
	// NilMeansNow records the current time.
	NilMeansNow NilPolicy = iota
	// NilIgnored leaves the tracker unchanged so a known value never
	// regresses to unknown.
	NilIgnored
)

func (p NilPolicy) String() string {
	switch p {
	case NilMeansNow:
		return "now"
	case NilIgnored:
		return "ignored"
	default:
		return fmt.Sprintf("NilPolicy(%d)", int(p))
	}
}

// Tracker owns the last-updated timestamp of one source.
type Tracker struct {
	source     Source
	policy     NilPolicy
	prober     Prober
	staleAfter time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu          sync.RWMutex
	lastUpdated *time.Time
	nowFunc     func() time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithStaleAfter sets the staleness threshold. Non-positive values keep
// the default.
func WithStaleAfter(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.staleAfter = d
		}
	}
}

// WithLogger sets the logger probe failures are written to.
func WithLogger(l *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithMetrics records probe outcomes and committed timestamps.
func WithMetrics(m *metrics.Metrics) TrackerOption {
	return func(t *Tracker) { t.metrics = m }
}

// NewTracker creates a tracker with no timestamp. A nil prober makes every
// probe fail.
func NewTracker(source Source, policy NilPolicy, prober Prober, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		source:     source,
		policy:     policy,
		prober:     prober,
		staleAfter: pkgfreshness.DefaultStaleAfter,
		logger:     slog.Default(),
		nowFunc:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("source", string(source))
	return t
}

// SetNowFunc overrides the clock used for NilMeansNow updates. Intended for tests.
func (t *Tracker) SetNowFunc(fn func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nowFunc = fn
}

// Source returns the tracker's key.
func (t *Tracker) Source() Source { return t.source }

// Policy returns the tracker's nil policy.
func (t *Tracker) Policy() NilPolicy { return t.policy }

// Update records ts as the last confirmed time. A nil ts is handled per
// the tracker's NilPolicy. Stored times are UTC.
func (t *Tracker) Update(ts *time.Time) {
	t.mu.Lock()
	if ts == nil {
		if t.policy == NilIgnored {
			t.mu.Unlock()
			return
		}
		now := t.nowFunc()
		ts = &now
	}
	v := ts.UTC()
	t.lastUpdated = &v
	t.mu.Unlock()

	t.metrics.SetLastUpdated(string(t.source), v)
}

// Get returns the current snapshot.
func (t *Tracker) Get() pkgfreshness.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return pkgfreshness.New(t.lastUpdated, t.staleAfter)
}

// Probe asks the upstream for its latest timestamp. It never mutates the
// tracker and never returns an error; failures are classified in the
// Result.
func (t *Tracker) Probe(ctx context.Context) (res Result) {
	res.Source = t.source
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.At = time.Time{}
			res.Err = &ProbeError{Kind: ProbeUnknown, Err: fmt.Errorf("probe panicked: %v", r)}
		}
		res.Elapsed = time.Since(start)
		t.metrics.ObserveProbe(string(t.source), res.Outcome(), res.Elapsed)
		if res.Err != nil {
			t.logger.Debug("freshness probe failed", "kind", string(res.Err.Kind), "err", res.Err.Err)
		}
	}()

	if t.prober == nil {
		res.Err = &ProbeError{
			Kind: ProbeUnknown,
			Err:  l5err.New(l5err.CodeFreshnessProbeMissing, "no prober configured", l5err.FieldSource(string(t.source))),
		}
		return res
	}

	at, err := t.prober.LatestTimestamp(ctx)
	switch {
	case err != nil:
		res.Err = &ProbeError{Kind: Classify(err), Err: err}
	case at.IsZero():
		res.Err = &ProbeError{Kind: ProbeMissingField, Err: fmt.Errorf("%s returned an empty timestamp", t.source)}
	default:
		res.At = at.UTC()
	}
	return res
}

// CheckFromAPI is Probe reduced to an optional timestamp.
func (t *Tracker) CheckFromAPI(ctx context.Context) (time.Time, bool) {
	res := t.Probe(ctx)
	return res.At, res.OK()
}

// RefreshFromAPI probes and, on success, updates the tracker. It reports
// whether a timestamp was obtained.
func (t *Tracker) RefreshFromAPI(ctx context.Context) bool {
	return t.Commit(t.Probe(ctx))
}

// Commit applies a successful result from this tracker's source. Failed
// results and results for other sources leave the tracker unchanged.
func (t *Tracker) Commit(res Result) bool {
	if res.Source != t.source || !res.OK() {
		return false
	}
	at := res.At
	t.Update(&at)
	return true
}
