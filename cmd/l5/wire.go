// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/l5-scheduler/l5/internal/capacity"
	"github.com/l5-scheduler/l5/internal/carbon"
	"github.com/l5-scheduler/l5/internal/carbon/neso"
	"github.com/l5-scheduler/l5/internal/carbon/watttime"
	"github.com/l5-scheduler/l5/internal/config"
	"github.com/l5-scheduler/l5/internal/freshness"
	"github.com/l5-scheduler/l5/internal/metrics"
	"github.com/l5-scheduler/l5/internal/refresh"
	"github.com/l5-scheduler/l5/internal/secrets"
	"github.com/l5-scheduler/l5/internal/upstream"
	l5err "github.com/l5-scheduler/l5/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// App holds every wired component. It is built once per command and passed
// down; nothing here is a package-level singleton.
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Credentials *secrets.KeyringCredentials
	Carbon      *carbon.Registry
	NESO        *neso.Provider
	WattTime    *watttime.Provider
	Capacity    *capacity.Client
	Freshness   *freshness.Facade
	Refresh     *refresh.Coordinator
	Metrics     *metrics.Metrics
	Registry    *prometheus.Registry
}

// WireApp creates the upstream clients, carbon providers, freshness facade
// and refresh coordinator from cfg.
func WireApp(cfg *config.Config, store secrets.Store, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return nil, l5err.Wrap(err, l5err.CodeCLISetupFailure, "registering metrics")
	}

	creds := secrets.NewKeyringCredentials(store, cfg.Secrets.Service, cfg.Credentials())

	client := upstream.NewClient(upstream.Options{
		Timeout:   cfg.Upstream.Timeout,
		RateLimit: cfg.Upstream.RateLimit,
		Burst:     cfg.Upstream.Burst,
	})

	nesoProvider := neso.New(client, cfg.Carbon.NESO.BaseURL)
	wattTimeProvider := watttime.New(client, creds, watttime.Config{
		BaseURL:    cfg.Carbon.WattTime.BaseURL,
		Region:     cfg.Carbon.WattTime.Region,
		SignalType: cfg.Carbon.WattTime.SignalType,
		Lookback:   cfg.Carbon.WattTime.Lookback,
	})

	registry, err := carbon.NewRegistry(wattTimeProvider, nesoProvider)
	if err != nil {
		return nil, l5err.Wrap(err, l5err.CodeCLISetupFailure, "building carbon registry")
	}

	fleet := capacity.NewClient(client, cfg.Capacity.BaseURL, creds)

	facade := freshness.NewFacade(freshness.Probers{
		NESO:     nesoProvider,
		WattTime: wattTimeProvider,
		Fleet:    fleet,
	}, freshness.Options{
		StaleAfter: cfg.Freshness.StaleAfter,
		Logger:     logger,
		Metrics:    m,
	})

	coordinator := refresh.New(facade, refresh.Options{Logger: logger, Metrics: m})

	return &App{
		Config:      cfg,
		Logger:      logger,
		Credentials: creds,
		Carbon:      registry,
		NESO:        nesoProvider,
		WattTime:    wattTimeProvider,
		Capacity:    fleet,
		Freshness:   facade,
		Refresh:     coordinator,
		Metrics:     m,
		Registry:    reg,
	}, nil
}

// loadConfig decodes the global Viper into a validated Config after
// resolving keyring:// references through store.
func loadConfig(store secrets.Store) (*config.Config, error) {
	v := viper.GetViper()
	if store != nil {
		secrets.ResolveViperSecrets(v, store)
	}
	return config.FromViper(v)
}

// newLogger builds a text slog logger on w. --verbose forces debug level.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openLogFile returns a rotating writer for logging.file (or the default
// log path). The dashboard owns the terminal, so its logs go here.
func openLogFile(cfg *config.Config) (*lumberjack.Logger, error) {
	path := cfg.Logging.File
	if path == "" {
		var err error
		if path, err = config.DefaultLogPath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, l5err.Wrapf(err, l5err.CodeCLISetupFailure, "creating log directory for %s", path)
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	}, nil
}

// setupApp loads config and wires the application with logs written to w.
func setupApp(w io.Writer) (*App, error) {
	store := secretStoreFactory()
	cfg, err := loadConfig(store)
	if err != nil {
		return nil, err
	}
	logger := newLogger(w, cfg)
	slog.SetDefault(logger)
	return WireApp(cfg, store, logger)
}
