// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

// Package carbon defines the carbon-intensity provider contract, the value
// types providers return, and the region registry that picks a provider.
package carbon

import (
	"context"
	"slices"
	"strings"
	"time"
)

// Provider is implemented by each carbon-intensity upstream adapter.
type Provider interface {
	ID() string
	SupportsRegion(region string) bool
	GetActual(ctx context.Context, req ActualRequest) (Series, error)
	GetForecast(ctx context.Context, req ForecastRequest) (Series, error)
}

// LatestReporter is implemented by providers that can report the timestamp
// of their most recent published data point.
type LatestReporter interface {
	LatestTimestamp(ctx context.Context) (time.Time, error)
}

// ActualRequest asks for observed intensity between Start and End.
type ActualRequest struct {
	Region string
	Start  time.Time
	End    time.Time
}

// ForecastRequest asks for forecast intensity from Start over Horizon.
type ForecastRequest struct {
	Region  string
	Start   time.Time
	Horizon time.Duration
}

// Kind distinguishes observed from forecast series.
type Kind string

const (
	KindActual   Kind = "actual"
	KindForecast Kind = "forecast"
)

// UnitGramsPerKWh is the only unit a Series carries.
const UnitGramsPerKWh = "gCO2/kWh"

// Point is one intensity reading in grams of CO2 per kilowatt-hour.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Series is a chronological run of points from one provider.
type Series struct {
	Points     []Point `json:"points"`
	ProviderID string  `json:"provider_id"`
	Kind       Kind    `json:"kind"`
	Region     string  `json:"region"`
	Unit       string  `json:"unit"`
}

// NewSeries builds a Series in the normalized unit with points sorted by time.
func NewSeries(providerID string, kind Kind, region string, points []Point) Series {
	sorted := slices.Clone(points)
	slices.SortStableFunc(sorted, func(a, b Point) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	if sorted == nil {
		sorted = []Point{}
	}
	return Series{
		Points:     sorted,
		ProviderID: providerID,
		Kind:       kind,
		Region:     NormalizeRegion(region),
		Unit:       UnitGramsPerKWh,
	}
}

// Latest returns the last point of the series.
func (s Series) Latest() (Point, bool) {
	if len(s.Points) == 0 {
		return Point{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// NormalizeRegion trims and upper-cases a region identifier.
func NormalizeRegion(region string) string {
	return strings.ToUpper(strings.TrimSpace(region))
}

var greatBritain = []string{"GB", "UK", "GBR", "GREAT_BRITAIN"}

// IsGreatBritain reports whether region names the GB grid.
func IsGreatBritain(region string) bool {
	return slices.Contains(greatBritain, NormalizeRegion(region))
}
