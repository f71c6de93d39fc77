// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package freshness_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/l5-scheduler/l5/internal/freshness"
	l5err "github.com/l5-scheduler/l5/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	t1  = now.Add(-10 * time.Minute)
	t2  = now.Add(-2 * time.Minute)
)

func fixed(ts time.Time) freshness.Prober {
	return freshness.ProberFunc(func(context.Context) (time.Time, error) { return ts, nil })
}

func failing(err error) freshness.Prober {
	return freshness.ProberFunc(func(context.Context) (time.Time, error) { return time.Time{}, err })
}

func TestUpdateNilPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy freshness.NilPolicy
		want   time.Time
	}{
		{name: "nil means now", policy: freshness.NilMeansNow, want: now},
		{name: "nil ignored keeps previous", policy: freshness.NilIgnored, want: t1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := freshness.NewTracker("src", tt.policy, nil)
			tr.SetNowFunc(func() time.Time { return now })

			tr.Update(&t1)
			tr.Update(nil)

			snap := tr.Get()
			require.NotNil(t, snap.LastUpdated)
			assert.Equal(t, tt.want, *snap.LastUpdated)
		})
	}
}

func TestUpdateNilIgnoredFromUnknownStaysUnknown(t *testing.T) {
	tr := freshness.NewTracker(freshness.SourceFleet, freshness.NilIgnored, nil)
	tr.Update(nil)
	assert.False(t, tr.Get().Observed())
}

func TestUpdateNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	local := time.Date(2026, 3, 14, 13, 0, 0, 0, loc)

	tr := freshness.NewTracker("src", freshness.NilMeansNow, nil)
	tr.Update(&local)

	got := *tr.Get().LastUpdated
	assert.Equal(t, time.UTC, got.Location())
	assert.True(t, got.Equal(local))
}

func TestCheckFromAPIDoesNotMutate(t *testing.T) {
	tr := freshness.NewTracker("src", freshness.NilMeansNow, fixed(t2))

	got, ok := tr.CheckFromAPI(context.Background())
	require.True(t, ok)
	assert.Equal(t, t2, got)
	assert.False(t, tr.Get().Observed())
}

func TestRefreshFromAPI(t *testing.T) {
	tr := freshness.NewTracker("src", freshness.NilMeansNow, fixed(t2))
	assert.True(t, tr.RefreshFromAPI(context.Background()))
	assert.Equal(t, t2, *tr.Get().LastUpdated)

	failed := freshness.NewTracker("src", freshness.NilMeansNow, failing(errors.New("boom")))
	failed.Update(&t1)
	assert.False(t, failed.RefreshFromAPI(context.Background()))
	assert.Equal(t, t1, *failed.Get().LastUpdated)
}

func TestProbeClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		prober freshness.Prober
		kind   freshness.ProbeKind
	}{
		{name: "no prober", prober: nil, kind: freshness.ProbeUnknown},
		{name: "timeout", prober: failing(l5err.New(l5err.CodeUpstreamRequestTimeout, "slow")), kind: freshness.ProbeTimeout},
		{name: "context deadline", prober: failing(context.DeadlineExceeded), kind: freshness.ProbeTimeout},
		{name: "network", prober: failing(l5err.New(l5err.CodeUpstreamRequestFailure, "refused")), kind: freshness.ProbeNetwork},
		{name: "status", prober: failing(l5err.New(l5err.CodeUpstreamResponseStatus, "500")), kind: freshness.ProbeStatus},
		{name: "unauthorized", prober: failing(l5err.New(l5err.CodeUpstreamResponseUnauthorized, "401")), kind: freshness.ProbeStatus},
		{name: "decode", prober: failing(l5err.New(l5err.CodeUpstreamResponseDecode, "bad json")), kind: freshness.ProbeDecode},
		{name: "bad timestamp", prober: failing(l5err.New(l5err.CodeUpstreamTimestampInvalid, "bad ts")), kind: freshness.ProbeDecode},
		{name: "missing field", prober: failing(l5err.New(l5err.CodeCarbonPayloadMissingField, "no data")), kind: freshness.ProbeMissingField},
		{name: "no groups", prober: failing(l5err.New(l5err.CodeCapacityGroupsNotFound, "empty")), kind: freshness.ProbeMissingField},
		{name: "zero timestamp", prober: fixed(time.Time{}), kind: freshness.ProbeMissingField},
		{name: "credentials", prober: failing(l5err.New(l5err.CodeSecretCredentialsMissing, "none")), kind: freshness.ProbeMissingCredentials},
		{name: "plain error", prober: failing(errors.New("boom")), kind: freshness.ProbeUnknown},
		{
			name:   "panic",
			prober: freshness.ProberFunc(func(context.Context) (time.Time, error) {
				panic("nil map")
			}),
			kind: freshness.ProbeUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := freshness.NewTracker("src", freshness.NilMeansNow, tt.prober)
			res := tr.Probe(context.Background())

			assert.False(t, res.OK())
			require.NotNil(t, res.Err)
			assert.Equal(t, tt.kind, res.Err.Kind)
			assert.Equal(t, string(tt.kind), res.Outcome())
			assert.True(t, res.At.IsZero())
			assert.False(t, tr.Get().Observed())
		})
	}
}

func TestCommitRejectsOtherSourcesAndFailures(t *testing.T) {
	tr := freshness.NewTracker(freshness.SourceNESO, freshness.NilMeansNow, nil)

	assert.False(t, tr.Commit(freshness.Result{Source: freshness.SourceFleet, At: t2}))
	assert.False(t, tr.Commit(freshness.Result{
		Source: freshness.SourceNESO,
		Err:    &freshness.ProbeError{Kind: freshness.ProbeNetwork},
	}))
	assert.False(t, tr.Get().Observed())

	assert.True(t, tr.Commit(freshness.Result{Source: freshness.SourceNESO, At: t2}))
	assert.Equal(t, t2, *tr.Get().LastUpdated)
}

func TestWithStaleAfter(t *testing.T) {
	tr := freshness.NewTracker("src", freshness.NilMeansNow, nil, freshness.WithStaleAfter(5*time.Minute))
	tr.Update(&t1)

	snap := tr.Get()
	assert.Equal(t, 5*time.Minute, snap.StaleAfter)
	assert.True(t, snap.IsStaleAt(now))
}
