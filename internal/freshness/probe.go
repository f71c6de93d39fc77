// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package freshness

import (
	"context"
	"errors"
	"time"

	l5err "github.com/l5-scheduler/l5/pkg/errors"
)

// Prober reads the newest "as of" time an upstream source reports.
type Prober interface {
	LatestTimestamp(ctx context.Context) (time.Time, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) (time.Time, error)

func (f ProberFunc) LatestTimestamp(ctx context.Context) (time.Time, error) { return f(ctx) }

// ProbeKind classifies why a probe produced no timestamp.
type ProbeKind string

const (
	ProbeNetwork            ProbeKind = "network"
	ProbeTimeout            ProbeKind = "timeout"
	ProbeStatus             ProbeKind = "status"
	ProbeDecode             ProbeKind = "decode"
	ProbeMissingField       ProbeKind = "missing_field"
	ProbeMissingCredentials ProbeKind = "missing_credentials"
	ProbeUnknown            ProbeKind = "unknown"
)

// ProbeError is a failed probe. It never escapes a Tracker as a returned
// error; it is carried inside Result for logging and metrics.
type ProbeError struct {
	Kind ProbeKind
	Err  error
}

func (e *ProbeError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Classify maps an error from the upstream, adapter or secrets layers to a
// ProbeKind.
func Classify(err error) ProbeKind {
	if err == nil {
		return ""
	}

	switch code := l5err.CodeOf(err); code {
	case l5err.CodeSecretCredentialsMissing:
		return ProbeMissingCredentials
	case l5err.CodeUpstreamResponseStatus, l5err.CodeUpstreamResponseUnauthorized:
		return ProbeStatus
	case l5err.CodeUpstreamResponseDecode, l5err.CodeUpstreamTimestampInvalid:
		return ProbeDecode
	case l5err.CodeCapacityGroupsNotFound, l5err.CodeCapacityScoresNotFound:
		return ProbeMissingField
	case l5err.CodeUpstreamRequestFailure:
		return ProbeNetwork
	}

	switch {
	case l5err.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return ProbeTimeout
	case l5err.IsMissing(err):
		return ProbeMissingField
	}
	return ProbeUnknown
}

// Result is the outcome of one probe. At is set only when Err is nil.
type Result struct {
	Source  Source
	At      time.Time
	Err     *ProbeError
	Elapsed time.Duration
}

// OK reports whether the probe obtained a timestamp.
func (r Result) OK() bool {
	return r.Err == nil && !r.At.IsZero()
}

// Outcome is "ok" or the failure kind, for logs and metric labels.
func (r Result) Outcome() string {
	if r.OK() {
		return "ok"
	}
	if r.Err == nil {
		return string(ProbeUnknown)
	}
	return string(r.Err.Kind)
}
