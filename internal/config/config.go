// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

// Package config loads L5 settings from defaults, an optional YAML file, a
// .env file and L5_ environment variables.
package config

import (
	"errors"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/l5-scheduler/l5/internal/capacity"
	"github.com/l5-scheduler/l5/internal/carbon/neso"
	"github.com/l5-scheduler/l5/internal/carbon/watttime"
	"github.com/l5-scheduler/l5/internal/secrets"
	"github.com/l5-scheduler/l5/internal/upstream"
	l5err "github.com/l5-scheduler/l5/pkg/errors"
	"github.com/l5-scheduler/l5/pkg/freshness"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. L5_CARBON_REGION.
const EnvPrefix = "L5"

// Environment names kept from earlier releases of the dashboard.
const (
	LegacyEnvCapacityBaseURL = "SPOT_FLEET_API_BASE_URL"
	LegacyEnvCapacityAPIKey  = "SPOT_FLEET_API_KEY"
)

// Config is the top-level L5 configuration.
type Config struct {
	Freshness FreshnessConfig `mapstructure:"freshness"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Carbon    CarbonConfig    `mapstructure:"carbon"`
	Capacity  CapacityConfig  `mapstructure:"capacity"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
}

// FreshnessConfig sets when a signal is shown as stale.
type FreshnessConfig struct {
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

// RefreshConfig sets the dashboard timers.
type RefreshConfig struct {
	InitialDelay   time.Duration `mapstructure:"initial_delay"`
	ProbeInterval  time.Duration `mapstructure:"probe_interval"`
	RenderInterval time.Duration `mapstructure:"render_interval"`
	ClockInterval  time.Duration `mapstructure:"clock_interval"`
}

// UpstreamConfig applies to every outbound HTTP call.
type UpstreamConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	Burst     int           `mapstructure:"burst"`
}

// CarbonConfig selects the region and the provider endpoints.
type CarbonConfig struct {
	Region   string         `mapstructure:"region"`
	NESO     NESOConfig     `mapstructure:"neso"`
	WattTime WattTimeConfig `mapstructure:"watttime"`
}

// NESOConfig points at the GB Carbon Intensity API.
type NESOConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// WattTimeConfig points at the WattTime API.
type WattTimeConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Region     string        `mapstructure:"region"`
	SignalType string        `mapstructure:"signal_type"`
	Lookback   time.Duration `mapstructure:"lookback"`
}

// CapacityConfig points at the Spot Fleet API. APIKey overrides the key
// held in the credential store.
type CapacityConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// ServerConfig controls the status API started by `l5 serve`.
type ServerConfig struct {
	ListenAddr  string   `mapstructure:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// LoggingConfig controls log level and the dashboard log file, which is
// rotated once it reaches MaxSizeMB.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// SecretsConfig names the keyring service credentials live under.
type SecretsConfig struct {
	Service string `mapstructure:"service"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("freshness.stale_after", freshness.DefaultStaleAfter)
	v.SetDefault("refresh.initial_delay", 100*time.Millisecond)
	v.SetDefault("refresh.probe_interval", 60*time.Second)
	v.SetDefault("refresh.render_interval", 5*time.Second)
	v.SetDefault("refresh.clock_interval", time.Second)
	v.SetDefault("upstream.timeout", upstream.DefaultTimeout)
	v.SetDefault("upstream.rate_limit", 2.0)
	v.SetDefault("upstream.burst", 4)
	v.SetDefault("carbon.region", "GB")
	v.SetDefault("carbon.neso.base_url", neso.DefaultBaseURL)
	v.SetDefault("carbon.watttime.base_url", watttime.DefaultBaseURL)
	v.SetDefault("carbon.watttime.region", watttime.DefaultRegion)
	v.SetDefault("carbon.watttime.signal_type", watttime.DefaultSignalType)
	v.SetDefault("carbon.watttime.lookback", watttime.DefaultLookback)
	v.SetDefault("capacity.base_url", capacity.DefaultBaseURL)
	v.SetDefault("capacity.api_key", "")
	v.SetDefault("server.listen_addr", "127.0.0.1:8650")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("secrets.service", secrets.DefaultService)
}

// SetupEnv enables L5_-prefixed overrides and binds the legacy Spot Fleet
// variable names.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("capacity.base_url", EnvPrefix+"_CAPACITY_BASE_URL", LegacyEnvCapacityBaseURL)
	_ = v.BindEnv("capacity.api_key", EnvPrefix+"_CAPACITY_API_KEY", LegacyEnvCapacityAPIKey)
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// into the process environment. Variables already set win and missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return l5err.Wrapf(err, l5err.CodeConfigParseInvalidFormat, "loading %s", p)
		}
	}
	return nil
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, l5err.Wrap(err, l5err.CodeConfigParseInvalidFormat, "unmarshalling config")
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, l5err.Wrap(errors.Join(errs...), l5err.CodeConfigValidateInvalidValue, "validating config")
	}

	return &cfg, nil
}

// Load reads configuration from path (or defaults only when empty) with
// environment overrides. Values of the form keyring://service/key are
// resolved through store when it is non-nil.
func Load(path string, store secrets.Store) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, l5err.Wrapf(err, l5err.CodeConfigLoadReadFailure, "reading config %s", path)
		}
	}
	if store != nil {
		secrets.ResolveViperSecrets(v, store)
	}

	return FromViper(v)
}

// Validate checks the configuration for logical errors, collecting every
// issue rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateDurations()...)
	errs = append(errs, c.validateUpstream()...)
	errs = append(errs, c.validateURLs()...)
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateLogging()...)

	if strings.TrimSpace(c.Carbon.Region) == "" {
		errs = append(errs, invalid("config: carbon.region must not be empty"))
	}
	if strings.TrimSpace(c.Secrets.Service) == "" {
		errs = append(errs, invalid("config: secrets.service must not be empty"))
	}

	return errs
}

func (c *Config) validateDurations() []error {
	var errs []error

	positive := []struct {
		key string
		val time.Duration
	}{
		{"freshness.stale_after", c.Freshness.StaleAfter},
		{"refresh.probe_interval", c.Refresh.ProbeInterval},
		{"refresh.render_interval", c.Refresh.RenderInterval},
		{"refresh.clock_interval", c.Refresh.ClockInterval},
		{"upstream.timeout", c.Upstream.Timeout},
		{"carbon.watttime.lookback", c.Carbon.WattTime.Lookback},
	}
	for _, p := range positive {
		if p.val <= 0 {
			errs = append(errs, invalid("config: %s must be greater than 0, got %s", p.key, p.val))
		}
	}
	if c.Refresh.InitialDelay < 0 {
		errs = append(errs, invalid("config: refresh.initial_delay must not be negative, got %s", c.Refresh.InitialDelay))
	}

	return errs
}

func (c *Config) validateUpstream() []error {
	var errs []error

	if c.Upstream.RateLimit < 0 {
		errs = append(errs, invalid("config: upstream.rate_limit must not be negative, got %g", c.Upstream.RateLimit))
	}
	if c.Upstream.RateLimit > 0 && c.Upstream.Burst <= 0 {
		errs = append(errs, invalid("config: upstream.burst must be positive when rate_limit is set, got %d", c.Upstream.Burst))
	}

	return errs
}

func (c *Config) validateURLs() []error {
	var errs []error

	for key, raw := range map[string]string{
		"carbon.neso.base_url":     c.Carbon.NESO.BaseURL,
		"carbon.watttime.base_url": c.Carbon.WattTime.BaseURL,
		"capacity.base_url":        c.Capacity.BaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, invalid("config: %s must be an absolute http(s) URL, got %q", key, raw))
		}
	}

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.ListenAddr == "" {
		return append(errs, invalid("config: server.listen_addr must not be empty"))
	}

	_, portStr, err := net.SplitHostPort(c.Server.ListenAddr)
	if err != nil {
		return append(errs, invalid("config: server.listen_addr must be a valid host:port address, got %q: %v",
			c.Server.ListenAddr, err))
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, invalid("config: server.listen_addr port must be a number, got %q", portStr))
	} else if port < 0 || port > 65535 {
		errs = append(errs, invalid("config: server.listen_addr port must be between 0 and 65535, got %d", port))
	}

	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Logging.MaxSizeMB <= 0 {
		errs = append(errs, invalid("config: logging.max_size_mb must be greater than 0, got %d", c.Logging.MaxSizeMB))
	}
	if c.Logging.MaxBackups < 0 {
		errs = append(errs, invalid("config: logging.max_backups must not be negative, got %d", c.Logging.MaxBackups))
	}
	return errs
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo, invalid("config: logging.level must be one of [debug, info, warn, error], got %q", level)
	}
	return l, nil
}

// Credentials returns the overrides config and environment put on top of
// the credential store.
func (c *Config) Credentials() secrets.Credentials {
	return secrets.Credentials{SpotFleetAPIKey: c.Capacity.APIKey}
}

func invalid(format string, args ...any) error {
	return l5err.Errorf(l5err.CodeConfigValidateInvalidValue, format, args...)
}
