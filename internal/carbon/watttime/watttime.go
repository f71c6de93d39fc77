// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

// Package watttime adapts the WattTime v3 API. It serves every region the
// GB grid provider does not and is the registry fallback.
package watttime

import (
	"context"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/l5-scheduler/l5/internal/carbon"
	"github.com/l5-scheduler/l5/internal/secrets"
	"github.com/l5-scheduler/l5/internal/upstream"
	l5err "github.com/l5-scheduler/l5/pkg/errors"
)

// ID identifies this provider in freshness output and logs.
const ID = "watttime"

const (
	DefaultBaseURL    = "https://api.watttime.org"
	DefaultRegion     = "CAISO_NORTH"
	DefaultSignalType = "co2_moer"
	DefaultLookback   = time.Hour
)

// Config selects the endpoint and signal queried.
type Config struct {
	BaseURL    string
	Region     string // used when a request carries no region
	SignalType string
	Lookback   time.Duration // window for LatestTimestamp
}

// Provider fetches WattTime signals with a bearer token obtained by login.
type Provider struct {
	client *upstream.Client
	cfg    Config
	tokens *tokenSource
}

var (
	_ carbon.Provider       = (*Provider)(nil)
	_ carbon.LatestReporter = (*Provider)(nil)
)

// New creates a Provider. Zero Config fields take the package defaults.
func New(client *upstream.Client, creds secrets.CredentialSource, cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.SignalType == "" {
		cfg.SignalType = DefaultSignalType
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	return &Provider{
		client: client,
		cfg:    cfg,
		tokens: &tokenSource{client: client, baseURL: cfg.BaseURL, creds: creds, nowFunc: time.Now},
	}
}

func (p *Provider) ID() string { return ID }

// SupportsRegion reports true for everything outside Great Britain.
func (p *Provider) SupportsRegion(region string) bool {
	return !carbon.IsGreatBritain(region)
}

// GetActual returns historical intensity for the window.
func (p *Provider) GetActual(ctx context.Context, req carbon.ActualRequest) (carbon.Series, error) {
	if !req.End.After(req.Start) {
		return carbon.Series{}, l5err.New(l5err.CodeCarbonRequestInvalid, "window end must be after start",
			l5err.FieldProvider(ID))
	}
	region := p.region(req.Region)
	payload, err := p.historical(ctx, region, req.Start, req.End)
	if err != nil {
		return carbon.Series{}, err
	}
	points, err := MapHistorical(payload)
	if err != nil {
		return carbon.Series{}, err
	}
	return carbon.NewSeries(ID, carbon.KindActual, region, points), nil
}

// GetForecast returns the current forecast truncated to the horizon,
// rounded up to whole hours for the request.
func (p *Provider) GetForecast(ctx context.Context, req carbon.ForecastRequest) (carbon.Series, error) {
	if req.Horizon <= 0 {
		return carbon.Series{}, l5err.New(l5err.CodeCarbonRequestInvalid, "forecast horizon must be positive",
			l5err.FieldProvider(ID))
	}
	region := p.region(req.Region)
	hours := int(math.Ceil(req.Horizon.Hours()))

	var payload Payload
	err := p.authorized(ctx, func(token string) error {
		return p.client.GetJSON(ctx, p.cfg.BaseURL+"/v3/forecast", &payload,
			upstream.WithBearer(token),
			upstream.WithQuery(url.Values{
				"region":        {region},
				"signal_type":   {p.cfg.SignalType},
				"horizon_hours": {strconv.Itoa(hours)},
			}))
	})
	if err != nil {
		return carbon.Series{}, err
	}
	points, err := MapForecast(payload)
	if err != nil {
		return carbon.Series{}, err
	}
	return carbon.NewSeries(ID, carbon.KindForecast, region, points), nil
}

// LatestTimestamp logs in and returns the newest point_time in the
// configured lookback window of the default region.
func (p *Provider) LatestTimestamp(ctx context.Context) (time.Time, error) {
	end := time.Now().UTC()
	payload, err := p.historical(ctx, p.cfg.Region, end.Add(-p.cfg.Lookback), end)
	if err != nil {
		return time.Time{}, err
	}
	return LatestPointTime(payload)
}

func (p *Provider) historical(ctx context.Context, region string, start, end time.Time) (Payload, error) {
	var payload Payload
	err := p.authorized(ctx, func(token string) error {
		return p.client.GetJSON(ctx, p.cfg.BaseURL+"/v3/historical", &payload,
			upstream.WithBearer(token),
			upstream.WithQuery(url.Values{
				"start":       {start.UTC().Format(time.RFC3339)},
				"end":         {end.UTC().Format(time.RFC3339)},
				"region":      {region},
				"signal_type": {p.cfg.SignalType},
			}))
	})
	return payload, err
}

// authorized runs call with a token, logging in again once if the cached
// token has been rejected.
func (p *Provider) authorized(ctx context.Context, call func(token string) error) error {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return err
	}
	err = call(token)
	if l5err.HasCode(err, l5err.CodeUpstreamResponseUnauthorized) {
		p.tokens.Invalidate()
		if token, err = p.tokens.Token(ctx); err != nil {
			return err
		}
		err = call(token)
	}
	return l5err.With(err, l5err.FieldProvider(ID))
}

func (p *Provider) region(requested string) string {
	if r := carbon.NormalizeRegion(requested); r != "" {
		return r
	}
	return p.cfg.Region
}
