// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

// Package freshness holds the point-in-time view of how recently an upstream
// signal was confirmed.
package freshness

import (
	"fmt"
	"time"
)

// DefaultStaleAfter is the age beyond which a signal is reported as stale.
const DefaultStaleAfter = time.Hour

// NeverLabel is rendered for a signal that has never been observed.
const NeverLabel = "N/A"

// Snapshot is an immutable "last confirmed" reading for one signal.
// A nil LastUpdated means the signal has never been observed.
type Snapshot struct {
	LastUpdated *time.Time
	StaleAfter  time.Duration
}

// New returns a Snapshot for ts. A zero staleAfter selects DefaultStaleAfter.
// The timestamp is copied so later mutation of the caller's value is not seen.
func New(ts *time.Time, staleAfter time.Duration) Snapshot {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	s := Snapshot{StaleAfter: staleAfter}
	if ts != nil {
		t := ts.UTC()
		s.LastUpdated = &t
	}
	return s
}

// Observed reports whether the signal has ever been confirmed.
func (s Snapshot) Observed() bool {
	return s.LastUpdated != nil
}

// AgeAt returns the age of the snapshot relative to now. Timestamps in the
// future report a zero age. The second result is false when never observed.
func (s Snapshot) AgeAt(now time.Time) (time.Duration, bool) {
	if s.LastUpdated == nil {
		return 0, false
	}
	age := now.Sub(*s.LastUpdated)
	if age < 0 {
		age = 0
	}
	return age, true
}

// Age is AgeAt evaluated against the wall clock.
func (s Snapshot) Age() (time.Duration, bool) {
	return s.AgeAt(time.Now())
}

// IsStaleAt reports whether the snapshot is absent or strictly older than
// its threshold. An age exactly equal to the threshold is not stale.
func (s Snapshot) IsStaleAt(now time.Time) bool {
	age, ok := s.AgeAt(now)
	if !ok {
		return true
	}
	return age > s.threshold()
}

// IsStale is IsStaleAt evaluated against the wall clock.
func (s Snapshot) IsStale() bool {
	return s.IsStaleAt(time.Now())
}

// FormatAgeAt renders a coarse label such as "42s ago" or "3h ago".
func (s Snapshot) FormatAgeAt(now time.Time) string {
	age, ok := s.AgeAt(now)
	if !ok {
		return NeverLabel
	}
	return FormatAge(age)
}

// FormatAge is FormatAgeAt evaluated against the wall clock.
func (s Snapshot) FormatAge() string {
	return s.FormatAgeAt(time.Now())
}

// FormatAge renders a non-negative duration in the largest whole unit
// that keeps it under the next band: seconds, minutes, hours, then days.
func FormatAge(age time.Duration) string {
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds ago", int64(age/time.Second))
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int64(age/time.Minute))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int64(age/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int64(age/(24*time.Hour)))
	}
}

func (s Snapshot) threshold() time.Duration {
	if s.StaleAfter <= 0 {
		return DefaultStaleAfter
	}
	return s.StaleAfter
}

// Report exposes a snapshot for monitoring and operator visibility. All
// fields are point-in-time values safe to serialize to JSON or YAML.
type Report struct {
	Source            string     `json:"source" yaml:"source"`
	LastUpdated       *time.Time `json:"last_updated,omitempty" yaml:"last_updated,omitempty"`
	AgeSeconds        *float64   `json:"age_seconds,omitempty" yaml:"age_seconds,omitempty"`
	Age               string     `json:"age" yaml:"age"`
	StaleAfterSeconds int64      `json:"stale_after_seconds" yaml:"stale_after_seconds"`
	Stale             bool       `json:"stale" yaml:"stale"`
}

// Report evaluates the snapshot at now and labels it with source.
func (s Snapshot) Report(source string, now time.Time) Report {
	r := Report{
		Source:            source,
		Age:               s.FormatAgeAt(now),
		StaleAfterSeconds: int64(s.threshold() / time.Second),
		Stale:             s.IsStaleAt(now),
	}
	if s.LastUpdated != nil {
		t := *s.LastUpdated
		r.LastUpdated = &t
	}
	if age, ok := s.AgeAt(now); ok {
		secs := age.Seconds()
		r.AgeSeconds = &secs
	}
	return r
}
