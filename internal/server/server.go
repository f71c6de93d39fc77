// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

// Package server exposes freshness, carbon provider selection and metrics
// over HTTP for headless deployments.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/l5-scheduler/l5/internal/carbon"
	"github.com/l5-scheduler/l5/internal/freshness"
	"github.com/l5-scheduler/l5/internal/metrics"
	"github.com/l5-scheduler/l5/internal/refresh"
	l5err "github.com/l5-scheduler/l5/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr   string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Services are the dependencies the routes read from. Refresh and Gatherer
// are optional.
type Services struct {
	Freshness     *freshness.Facade
	Carbon        *carbon.Registry
	Refresh       *refresh.Coordinator
	Gatherer      prometheus.Gatherer
	DefaultRegion string
	Version       string
}

// Server wraps a chi router with huma API and HTTP server.
type Server struct {
	router chi.Router
	api    huma.API
	cfg    Config
	svc    Services
	now    func() time.Time
}

// New creates a Server with routes, CORS and the metrics endpoint.
func New(cfg Config, svc Services) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, l5err.New(l5err.CodeServerConfigInvalid, "listen address is required")
	}
	if svc.Freshness == nil || svc.Carbon == nil {
		return nil, l5err.New(l5err.CodeServerConfigInvalid, "freshness facade and carbon registry are required")
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if svc.Version == "" {
		svc.Version = "dev"
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware(cfg.CORSOrigins))

	humaConfig := huma.DefaultConfig("L5 Status", svc.Version)
	humaConfig.Info.Description = "Freshness of the carbon and capacity signals used by the L5 scheduler"
	api := humachi.New(r, humaConfig)

	r.Handle("/metrics", metrics.Handler(svc.Gatherer))

	srv := &Server{
		router: r,
		api:    api,
		cfg:    cfg,
		svc:    svc,
		now:    time.Now,
	}
	srv.registerRoutes()
	return srv, nil
}

// SetNowFunc overrides the clock used to evaluate ages. Intended for tests.
func (s *Server) SetNowFunc(fn func() time.Time) {
	s.now = fn
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API, used to export the OpenAPI document.
func (s *Server) API() huma.API {
	return s.api
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return l5err.Wrapf(err, l5err.CodeServerStartFailure, "listening on %s", s.cfg.ListenAddr)
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return l5err.Wrap(err, l5err.CodeServerShutdownFailure, "shutting down")
	}

	if err := <-errCh; err != nil {
		return l5err.Wrap(err, l5err.CodeServerStartFailure, "serving")
	}
	return nil
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
}
