// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package watttime

import (
	"time"

	"github.com/l5-scheduler/l5/internal/carbon"
	"github.com/l5-scheduler/l5/internal/upstream"
	l5err "github.com/l5-scheduler/l5/pkg/errors"
)

// Payload is the envelope of the v3 historical and forecast endpoints.
type Payload struct {
	Data []DataPoint `json:"data"`
	Meta Meta        `json:"meta"`
}

// DataPoint is one signal value in lb/MWh.
type DataPoint struct {
	PointTime string   `json:"point_time"`
	Value     *float64 `json:"value"`
}

// Meta carries the echo of the request parameters.
type Meta struct {
	Region     string `json:"region"`
	SignalType string `json:"signal_type"`
	Units      string `json:"units"`
}

// MapHistorical converts historical data to g/kWh points.
func MapHistorical(payload Payload) ([]carbon.Point, error) {
	return mapPoints(payload.Data)
}

// MapForecast converts forecast data to g/kWh points. WattTime forecasts
// open with a point for the current interval that is not part of the
// forecast proper; it is dropped whenever anything follows it.
func MapForecast(payload Payload) ([]carbon.Point, error) {
	data := payload.Data
	if len(data) > 1 {
		data = data[1:]
	}
	return mapPoints(data)
}

func mapPoints(data []DataPoint) ([]carbon.Point, error) {
	points := make([]carbon.Point, 0, len(data))
	for _, d := range data {
		if d.Value == nil {
			continue
		}
		ts, err := pointTime(d)
		if err != nil {
			return nil, err
		}
		points = append(points, carbon.Point{Timestamp: ts, Value: carbon.GramsPerKWh(*d.Value)})
	}
	return points, nil
}

// LatestPointTime returns the newest point_time in the payload.
func LatestPointTime(payload Payload) (time.Time, error) {
	var latest time.Time
	for _, d := range payload.Data {
		if d.PointTime == "" {
			continue
		}
		ts, err := pointTime(d)
		if err != nil {
			return time.Time{}, err
		}
		if ts.After(latest) {
			latest = ts
		}
	}
	if latest.IsZero() {
		return time.Time{}, l5err.New(l5err.CodeCarbonPayloadMissingField, "no point_time in response",
			l5err.FieldProvider(ID))
	}
	return latest, nil
}

func pointTime(d DataPoint) (time.Time, error) {
	if d.PointTime == "" {
		return time.Time{}, l5err.New(l5err.CodeCarbonPayloadMissingField, "data point missing point_time",
			l5err.FieldProvider(ID))
	}
	return upstream.ParseTimestamp(d.PointTime)
}
