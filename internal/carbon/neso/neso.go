// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

// Package neso adapts the GB Carbon Intensity API published by the National
// Energy System Operator.
package neso

import (
	"context"
	"strings"
	"time"

	"github.com/l5-scheduler/l5/internal/carbon"
	"github.com/l5-scheduler/l5/internal/upstream"
	l5err "github.com/l5-scheduler/l5/pkg/errors"
)

// ID identifies this provider in freshness output and logs.
const ID = "neso"

// DefaultBaseURL is the public, unauthenticated API root.
const DefaultBaseURL = "https://api.carbonintensity.org.uk"

// pathTimeLayout is the minute-precision form the API accepts in paths.
const pathTimeLayout = "2006-01-02T15:04Z"

// Provider fetches national GB intensity.
type Provider struct {
	client  *upstream.Client
	baseURL string
}

var (
	_ carbon.Provider       = (*Provider)(nil)
	_ carbon.LatestReporter = (*Provider)(nil)
)

// New creates a Provider. An empty baseURL selects DefaultBaseURL.
func New(client *upstream.Client, baseURL string) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *Provider) ID() string { return ID }

// SupportsRegion reports true for the Great Britain aliases only.
func (p *Provider) SupportsRegion(region string) bool {
	return carbon.IsGreatBritain(region)
}

// GetActual returns observed intensity for the window.
func (p *Provider) GetActual(ctx context.Context, req carbon.ActualRequest) (carbon.Series, error) {
	if err := p.checkRegion(req.Region); err != nil {
		return carbon.Series{}, err
	}
	payload, err := p.fetchWindow(ctx, req.Start, req.End)
	if err != nil {
		return carbon.Series{}, err
	}
	points, err := MapActual(payload)
	if err != nil {
		return carbon.Series{}, err
	}
	return carbon.NewSeries(ID, carbon.KindActual, req.Region, points), nil
}

// GetForecast returns forecast intensity from Start over Horizon.
func (p *Provider) GetForecast(ctx context.Context, req carbon.ForecastRequest) (carbon.Series, error) {
	if err := p.checkRegion(req.Region); err != nil {
		return carbon.Series{}, err
	}
	if req.Horizon <= 0 {
		return carbon.Series{}, l5err.New(l5err.CodeCarbonRequestInvalid, "forecast horizon must be positive",
			l5err.FieldProvider(ID))
	}
	payload, err := p.fetchWindow(ctx, req.Start, req.Start.Add(req.Horizon))
	if err != nil {
		return carbon.Series{}, err
	}
	points, err := MapForecast(payload)
	if err != nil {
		return carbon.Series{}, err
	}
	return carbon.NewSeries(ID, carbon.KindForecast, req.Region, points), nil
}

// LatestTimestamp returns the end of the current settlement period as
// published by the API, falling back to its start.
func (p *Provider) LatestTimestamp(ctx context.Context) (time.Time, error) {
	var payload Payload
	if err := p.client.GetJSON(ctx, p.baseURL+"/intensity", &payload); err != nil {
		return time.Time{}, l5err.With(err, l5err.FieldProvider(ID))
	}
	if len(payload.Data) == 0 {
		return time.Time{}, l5err.New(l5err.CodeCarbonPayloadMissingField, "intensity response has no data",
			l5err.FieldProvider(ID))
	}
	raw := payload.Data[0].To
	if raw == "" {
		raw = payload.Data[0].From
	}
	if raw == "" {
		return time.Time{}, l5err.New(l5err.CodeCarbonPayloadMissingField, "intensity entry has no from/to",
			l5err.FieldProvider(ID))
	}
	return upstream.ParseTimestamp(raw)
}

func (p *Provider) fetchWindow(ctx context.Context, from, to time.Time) (Payload, error) {
	if !to.After(from) {
		return Payload{}, l5err.New(l5err.CodeCarbonRequestInvalid, "window end must be after start",
			l5err.FieldProvider(ID))
	}
	url := p.baseURL + "/intensity/" + from.UTC().Format(pathTimeLayout) + "/" + to.UTC().Format(pathTimeLayout)

	var payload Payload
	if err := p.client.GetJSON(ctx, url, &payload); err != nil {
		return Payload{}, l5err.With(err, l5err.FieldProvider(ID))
	}
	return payload, nil
}

func (p *Provider) checkRegion(region string) error {
	if !p.SupportsRegion(region) {
		return l5err.New(l5err.CodeCarbonRequestInvalid, "region not served by "+ID,
			l5err.FieldProvider(ID), l5err.FieldRegion(region))
	}
	return nil
}
