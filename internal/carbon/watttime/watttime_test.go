// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package watttime_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/l5-scheduler/l5/internal/carbon"
	"github.com/l5-scheduler/l5/internal/carbon/watttime"
	"github.com/l5-scheduler/l5/internal/secrets"
	"github.com/l5-scheduler/l5/internal/upstream"
	l5err "github.com/l5-scheduler/l5/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validCreds = secrets.StaticCredentials{WattTimeUsername: "alice", WattTimePassword: "pw"}

// fakeAPI serves /login and the v3 data endpoints, counting logins.
type fakeAPI struct {
	logins     atomic.Int32
	rejectNext atomic.Bool
	data       string
}

func (f *fakeAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			user, pass, ok := r.BasicAuth()
			if !ok || user != "alice" || pass != "pw" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			n := f.logins.Add(1)
			_, _ = fmt.Fprintf(w, `{"token":"tok-%d"}`, n)
		case "/v3/historical", "/v3/forecast":
			if r.Header.Get("Authorization") == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if f.rejectNext.CompareAndSwap(true, false) {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			assert.Equal(t, "co2_moer", r.URL.Query().Get("signal_type"))
			_, _ = w.Write([]byte(f.data))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

// unavailableStore fails every call the way a host without a keyring daemon does.
type unavailableStore struct{}

func (unavailableStore) Store(string, string, string) error { return errUnavailable() }
func (unavailableStore) Retrieve(string, string) (string, error) {
	return "", errUnavailable()
}
func (unavailableStore) Delete(string, string) error { return errUnavailable() }
func (unavailableStore) List(string) ([]string, error) { return nil, errUnavailable() }

func errUnavailable() error {
	return l5err.New(l5err.CodeSecretStoreFailure, "keyring unavailable")
}

func newProvider(t *testing.T, api *fakeAPI, creds secrets.CredentialSource) *watttime.Provider {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	return watttime.New(upstream.NewClient(upstream.Options{Timeout: time.Second}), creds, watttime.Config{BaseURL: srv.URL})
}

func TestSupportsEverythingButGB(t *testing.T) {
	p := watttime.New(nil, nil, watttime.Config{})
	assert.True(t, p.SupportsRegion("US"))
	assert.True(t, p.SupportsRegion("caiso_north"))
	assert.False(t, p.SupportsRegion(" gb"))
	assert.False(t, p.SupportsRegion("UK"))
}

func TestMapForecastDropsLeadingPoint(t *testing.T) {
	mk := func(n int) watttime.Payload {
		var p watttime.Payload
		for i := range n {
			v := float64(1000 * (i + 1))
			p.Data = append(p.Data, watttime.DataPoint{
				PointTime: time.Date(2026, 1, 1, 0, 5*i, 0, 0, time.UTC).Format(time.RFC3339),
				Value:     &v,
			})
		}
		return p
	}

	points, err := watttime.MapForecast(mk(5))
	require.NoError(t, err)
	require.Len(t, points, 4)
	assert.InDelta(t, carbon.GramsPerKWh(2000), points[0].Value, 1e-9)

	points, err = watttime.MapForecast(mk(1))
	require.NoError(t, err)
	assert.Len(t, points, 1)

	points, err = watttime.MapForecast(mk(0))
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestMapHistoricalConvertsAndSkipsNulls(t *testing.T) {
	v := 1.0
	points, err := watttime.MapHistorical(watttime.Payload{Data: []watttime.DataPoint{
		{PointTime: "2026-01-01T00:00:00+00:00", Value: &v},
		{PointTime: "2026-01-01T00:05:00+00:00"},
	}})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 0.45359237, points[0].Value)
}

func TestLatestTimestampLogsInAndReturnsMaxPointTime(t *testing.T) {
	api := &fakeAPI{data: `{"data":[
		{"point_time":"2026-01-20T12:00:00+00:00","value":800},
		{"point_time":"2026-01-20T12:10:00+00:00","value":810},
		{"point_time":"2026-01-20T12:05:00","value":805}
	]}`}
	p := newProvider(t, api, validCreds)

	got, err := p.LatestTimestamp(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 20, 12, 10, 0, 0, time.UTC), got)

	_, err = p.LatestTimestamp(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), api.logins.Load(), "token is reused")
}

func TestLatestTimestampRelogsOnRejectedToken(t *testing.T) {
	api := &fakeAPI{data: `{"data":[{"point_time":"2026-01-20T12:00:00Z","value":1}]}`}
	p := newProvider(t, api, validCreds)

	_, err := p.LatestTimestamp(context.Background())
	require.NoError(t, err)

	api.rejectNext.Store(true)
	_, err = p.LatestTimestamp(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), api.logins.Load())
}

func TestLatestTimestampFailures(t *testing.T) {
	tests := []struct {
		name  string
		creds secrets.CredentialSource
		data  string
		code  l5err.Code
	}{
		{name: "no credential source", creds: nil, code: l5err.CodeSecretCredentialsMissing},
		{name: "empty credentials", creds: secrets.StaticCredentials{}, code: l5err.CodeSecretCredentialsMissing},
		{name: "keyring unavailable", creds: secrets.NewKeyringCredentials(unavailableStore{}, "l5", secrets.Credentials{}), code: l5err.CodeSecretCredentialsMissing},
		{name: "wrong password", creds: secrets.StaticCredentials{WattTimeUsername: "alice", WattTimePassword: "bad"}, code: l5err.CodeUpstreamResponseUnauthorized},
		{name: "empty data", creds: validCreds, data: `{"data":[]}`, code: l5err.CodeCarbonPayloadMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProvider(t, &fakeAPI{data: tt.data}, tt.creds)
			_, err := p.LatestTimestamp(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.code, l5err.CodeOf(err))
		})
	}
}

func TestGetForecastTrimsAndTagsSeries(t *testing.T) {
	api := &fakeAPI{data: `{"data":[
		{"point_time":"2026-01-20T12:00:00Z","value":1},
		{"point_time":"2026-01-20T12:05:00Z","value":2},
		{"point_time":"2026-01-20T12:10:00Z","value":3}
	],"meta":{"region":"CAISO_NORTH"}}`}
	p := newProvider(t, api, validCreds)

	s, err := p.GetForecast(context.Background(), carbon.ForecastRequest{Start: time.Now(), Horizon: 90 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, watttime.ID, s.ProviderID)
	assert.Equal(t, watttime.DefaultRegion, s.Region)
	assert.Len(t, s.Points, 2)
}

func TestGetActual(t *testing.T) {
	api := &fakeAPI{data: `{"data":[{"point_time":"2026-01-20T12:00:00Z","value":1000}]}`}
	p := newProvider(t, api, validCreds)

	end := time.Date(2026, 1, 20, 13, 0, 0, 0, time.UTC)
	s, err := p.GetActual(context.Background(), carbon.ActualRequest{Region: "pjm_dc", Start: end.Add(-time.Hour), End: end})
	require.NoError(t, err)
	assert.Equal(t, "PJM_DC", s.Region)
	require.Len(t, s.Points, 1)
	assert.InDelta(t, 453.59237, s.Points[0].Value, 1e-9)

	_, err = p.GetActual(context.Background(), carbon.ActualRequest{Start: end, End: end})
	assert.True(t, l5err.HasCode(err, l5err.CodeCarbonRequestInvalid))
}
