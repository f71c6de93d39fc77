// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package upstream

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	l5err "github.com/l5-scheduler/l5/pkg/errors"
)

// Zoned layouts are tried first; the naive ones are interpreted as UTC.
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04Z07:00",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02T15:04:05.999999999-0700",
		"2006-01-02T15:04:05-0700",
	}
	naiveLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02",
	}
)

// ParseTimestamp parses an ISO-8601 timestamp as emitted by the carbon and
// capacity APIs. Values without an offset are taken to be UTC. The result
// is always in UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, l5err.New(l5err.CodeUpstreamTimestampInvalid, "empty timestamp")
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, l5err.New(l5err.CodeUpstreamTimestampInvalid, "unrecognised timestamp",
		l5err.Field("value", raw))
}

// Timestamp is a time.Time that unmarshals from any layout ParseTimestamp accepts.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler. JSON null leaves the zero value.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return l5err.Wrap(err, l5err.CodeUpstreamTimestampInvalid, "timestamp is not a string")
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// MarshalJSON renders RFC 3339 in UTC.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
