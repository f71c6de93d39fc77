// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package neso

import (
	"github.com/l5-scheduler/l5/internal/carbon"
	"github.com/l5-scheduler/l5/internal/upstream"
	l5err "github.com/l5-scheduler/l5/pkg/errors"
)

// Payload is the envelope of the /intensity endpoints.
type Payload struct {
	Data []Entry `json:"data"`
}

// Entry is one half-hour settlement period.
type Entry struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Intensity Intensity `json:"intensity"`
}

// Intensity values are already in gCO2/kWh. Either may be null.
type Intensity struct {
	Forecast *float64 `json:"forecast"`
	Actual   *float64 `json:"actual"`
	Index    string   `json:"index"`
}

// MapActual converts the actual readings, skipping periods without one.
func MapActual(payload Payload) ([]carbon.Point, error) {
	return mapEntries(payload, func(i Intensity) *float64 { return i.Actual })
}

// MapForecast converts the forecast readings, skipping periods without one.
func MapForecast(payload Payload) ([]carbon.Point, error) {
	return mapEntries(payload, func(i Intensity) *float64 { return i.Forecast })
}

// mapEntries stamps each point with the period end.
func mapEntries(payload Payload, pick func(Intensity) *float64) ([]carbon.Point, error) {
	points := make([]carbon.Point, 0, len(payload.Data))
	for _, e := range payload.Data {
		v := pick(e.Intensity)
		if v == nil {
			continue
		}
		if e.To == "" {
			return nil, l5err.New(l5err.CodeCarbonPayloadMissingField, "intensity entry missing 'to'",
				l5err.FieldProvider(ID))
		}
		ts, err := upstream.ParseTimestamp(e.To)
		if err != nil {
			return nil, err
		}
		points = append(points, carbon.Point{Timestamp: ts, Value: *v})
	}
	return points, nil
}
