// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/l5-scheduler/l5/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := metrics.New(reg)
	require.NoError(t, err)
	second, err := metrics.New(reg)
	require.NoError(t, err)

	first.CycleSkipped("interval")
	second.CycleSkipped("interval")

	count, err := testutil.GatherAndCount(reg, "l5_refresh_skipped_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecordsAndServes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	m.CycleStarted("manual")
	m.ObserveProbe("neso", "ok", 150*time.Millisecond)
	m.ObserveProbe("fleet", "timeout", time.Second)
	m.SetLastUpdated("neso", time.Unix(1700000000, 0))
	m.CycleFinished(2 * time.Second)

	srv := httptest.NewServer(metrics.Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `l5_probes_total{outcome="ok",source="neso"} 1`)
	assert.Contains(t, text, `l5_probes_total{outcome="timeout",source="fleet"} 1`)
	assert.Contains(t, text, `l5_refresh_cycles_total{trigger="manual"} 1`)
	assert.Contains(t, text, `l5_refresh_in_flight 0`)
	assert.Contains(t, text, `l5_source_last_updated_timestamp_seconds{source="neso"} 1.7e+09`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.CycleStarted("interval")
		m.CycleSkipped("interval")
		m.ObserveProbe("neso", "ok", time.Second)
		m.SetLastUpdated("neso", time.Now())
		m.CycleFinished(time.Second)
	})
}
