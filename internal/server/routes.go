// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/l5-scheduler/l5/internal/carbon"
	"github.com/l5-scheduler/l5/internal/freshness"
	"github.com/l5-scheduler/l5/internal/refresh"
	l5err "github.com/l5-scheduler/l5/pkg/errors"
	pkgfreshness "github.com/l5-scheduler/l5/pkg/freshness"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, s.handleHealth)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-freshness",
		Method:      http.MethodGet,
		Path:        "/api/v1/freshness",
		Summary:     "Freshness of every source",
		Tags:        []string{"freshness"},
	}, s.handleListFreshness)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-freshness",
		Method:      http.MethodGet,
		Path:        "/api/v1/freshness/{source}",
		Summary:     "Freshness of one source",
		Tags:        []string{"freshness"},
	}, s.handleGetFreshness)

	huma.Register(s.api, huma.Operation{
		OperationID:   "request-refresh",
		Method:        http.MethodPost,
		Path:          "/api/v1/refresh",
		Summary:       "Request an immediate refresh",
		Tags:          []string{"freshness"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleRequestRefresh)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-carbon-provider",
		Method:      http.MethodGet,
		Path:        "/api/v1/carbon/provider",
		Summary:     "Carbon provider selected for a region",
		Tags:        []string{"carbon"},
	}, s.handleCarbonProvider)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-carbon-intensity",
		Method:      http.MethodGet,
		Path:        "/api/v1/carbon/intensity",
		Summary:     "Observed or forecast carbon intensity for a region",
		Tags:        []string{"carbon"},
	}, s.handleCarbonIntensity)
}

type healthOutput struct {
	Body struct {
		Status  string `json:"status" example:"ok" doc:"Health status"`
		Refresh string `json:"refresh" example:"idle" doc:"Refresh coordinator state"`
	}
}

type listFreshnessOutput struct {
	Body struct {
		Sources    []pkgfreshness.Report `json:"sources"`
		Carbon     pkgfreshness.Report   `json:"carbon" doc:"Fresher of the two carbon sources"`
		Refreshing bool                  `json:"refreshing"`
	}
}

type freshnessSourceInput struct {
	Source string `path:"source" doc:"neso, watttime or fleet"`
}
type getFreshnessOutput struct {
	Body pkgfreshness.Report
}

type requestRefreshOutput struct {
	Body struct {
		Status string `json:"status" example:"queued"`
	}
}

type carbonProviderInput struct {
	Region string `query:"region" doc:"Region code; empty selects the default region"`
}
type carbonProviderOutput struct {
	Body struct {
		Region   string `json:"region"`
		Provider string `json:"provider"`
	}
}

type carbonIntensityInput struct {
	Region string `query:"region" doc:"Region code; empty selects the default region"`
	Kind   string `query:"kind" enum:"actual,forecast" default:"actual"`
	Hours  int    `query:"hours" minimum:"1" maximum:"72" default:"24" doc:"Window length"`
}
type carbonIntensityOutput struct {
	Body carbon.Series
}

func (s *Server) handleHealth(_ context.Context, _ *struct{}) (*healthOutput, error) {
	out := &healthOutput{}
	out.Body.Status = "ok"
	out.Body.Refresh = refresh.Idle.String()
	if s.svc.Refresh != nil {
		out.Body.Refresh = s.svc.Refresh.State().String()
	}
	return out, nil
}

func (s *Server) handleListFreshness(_ context.Context, _ *struct{}) (*listFreshnessOutput, error) {
	now := s.now()
	out := &listFreshnessOutput{}
	out.Body.Sources = s.svc.Freshness.Reports(now)
	out.Body.Carbon = s.svc.Freshness.GetCarbonFreshness().Report("carbon", now)
	out.Body.Refreshing = s.svc.Refresh != nil && s.svc.Refresh.Busy()
	return out, nil
}

func (s *Server) handleGetFreshness(_ context.Context, input *freshnessSourceInput) (*getFreshnessOutput, error) {
	t, err := s.svc.Freshness.Tracker(freshness.Source(input.Source))
	if err != nil {
		return nil, toHumaError(err)
	}
	return &getFreshnessOutput{Body: t.Get().Report(input.Source, s.now())}, nil
}

func (s *Server) handleRequestRefresh(_ context.Context, _ *struct{}) (*requestRefreshOutput, error) {
	if s.svc.Refresh == nil {
		return nil, huma.Error503ServiceUnavailable("refresh coordinator not running")
	}
	s.svc.Refresh.Kick(refresh.TriggerManual)
	out := &requestRefreshOutput{}
	out.Body.Status = "queued"
	return out, nil
}

func (s *Server) handleCarbonProvider(_ context.Context, input *carbonProviderInput) (*carbonProviderOutput, error) {
	region := s.region(input.Region)
	out := &carbonProviderOutput{}
	out.Body.Region = region
	out.Body.Provider = s.svc.Carbon.ForRegion(region).ID()
	return out, nil
}

func (s *Server) handleCarbonIntensity(ctx context.Context, input *carbonIntensityInput) (*carbonIntensityOutput, error) {
	region := s.region(input.Region)
	provider := s.svc.Carbon.ForRegion(region)
	window := time.Duration(input.Hours) * time.Hour
	now := s.now().UTC()

	var (
		series carbon.Series
		err    error
	)
	switch carbon.Kind(input.Kind) {
	case carbon.KindForecast:
		series, err = provider.GetForecast(ctx, carbon.ForecastRequest{Region: region, Start: now, Horizon: window})
	default:
		series, err = provider.GetActual(ctx, carbon.ActualRequest{Region: region, Start: now.Add(-window), End: now})
	}
	if err != nil {
		return nil, toHumaError(err)
	}
	return &carbonIntensityOutput{Body: series}, nil
}

func (s *Server) region(requested string) string {
	if region := carbon.NormalizeRegion(requested); region != "" {
		return region
	}
	return carbon.NormalizeRegion(s.svc.DefaultRegion)
}

// toHumaError maps coded errors to responses. Failures of the carbon
// upstreams are reported as gateway errors, not as our own status.
func toHumaError(err error) error {
	code := l5err.CodeOf(err)
	status := l5err.HTTPStatus(err)
	switch {
	case l5err.IsTimeout(err):
		status = http.StatusGatewayTimeout
	case code == l5err.CodeCarbonRequestInvalid:
		status = http.StatusBadRequest
	case strings.HasPrefix(string(code), "upstream."),
		strings.HasPrefix(string(code), "carbon."),
		code == l5err.CodeSecretCredentialsMissing:
		status = http.StatusBadGateway
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = fmt.Sprintf("internal error (%s)", code)
	}
	return huma.NewError(status, msg)
}
