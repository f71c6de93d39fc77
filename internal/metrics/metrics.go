// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

// Package metrics exposes refresh and probe counters in Prometheus format.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "l5"

// Metrics records freshness probes and refresh cycles.
type Metrics struct {
	probes        *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
	lastUpdated   *prometheus.GaugeVec
	cycles        *prometheus.CounterVec
	skipped       *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	refreshing    prometheus.Gauge
}

// New registers the collectors on reg, or the default registerer when reg is
// nil. Collectors that are already registered are reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{}
	var err error
	if m.probes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "probes_total",
		Help:      "Freshness probes by source and outcome.",
	}, []string{"source", "outcome"})); err != nil {
		return nil, err
	}
	if m.probeDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "probe_duration_seconds",
		Help:      "Time spent probing an upstream source.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})); err != nil {
		return nil, err
	}
	if m.lastUpdated, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "source_last_updated_timestamp_seconds",
		Help:      "Unix time of the last confirmed update per source.",
	}, []string{"source"})); err != nil {
		return nil, err
	}
	if m.cycles, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_cycles_total",
		Help:      "Refresh cycles dispatched by trigger.",
	}, []string{"trigger"})); err != nil {
		return nil, err
	}
	if m.skipped, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_skipped_total",
		Help:      "Refresh requests dropped because a cycle was in flight.",
	}, []string{"trigger"})); err != nil {
		return nil, err
	}
	if m.cycleDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "refresh_cycle_duration_seconds",
		Help:      "Wall time of a refresh cycle from dispatch to commit.",
		Buckets:   prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	if m.refreshing, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "refresh_in_flight",
		Help:      "1 while a refresh cycle is running.",
	})); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ObserveProbe counts a probe and its latency. outcome is "ok" or a
// failure kind.
func (m *Metrics) ObserveProbe(source, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(source, outcome).Inc()
	m.probeDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// SetLastUpdated publishes the committed timestamp of a source.
func (m *Metrics) SetLastUpdated(source string, t time.Time) {
	if m == nil {
		return
	}
	m.lastUpdated.WithLabelValues(source).Set(float64(t.UnixNano()) / 1e9)
}

// CycleStarted marks a dispatched refresh.
func (m *Metrics) CycleStarted(trigger string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(trigger).Inc()
	m.refreshing.Set(1)
}

// CycleSkipped counts a refresh request dropped by the in-flight guard.
func (m *Metrics) CycleSkipped(trigger string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(trigger).Inc()
}

// CycleFinished records a completed refresh.
func (m *Metrics) CycleFinished(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(elapsed.Seconds())
	m.refreshing.Set(0)
}

// Handler serves the metrics gathered by g, or the default gatherer when g
// is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
