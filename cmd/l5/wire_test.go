// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/l5-scheduler/l5/internal/carbon/neso"
	"github.com/l5-scheduler/l5/internal/carbon/watttime"
	"github.com/l5-scheduler/l5/internal/config"
	"github.com/l5-scheduler/l5/internal/freshness"
	"github.com/l5-scheduler/l5/internal/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig loads defaults with no file and no keyring.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	return cfg
}

func TestWireApp(t *testing.T) {
	cfg := testConfig(t)
	cfg.Capacity.APIKey = "from-env"

	store := newMockSecretStore()
	store.data[secrets.KeyWattTimeUsername] = "alice"

	app, err := WireApp(cfg, store, nil)
	require.NoError(t, err)

	assert.NotNil(t, app.Logger)
	assert.Len(t, app.Freshness.Trackers(), 3)

	tr, err := app.Freshness.Tracker(freshness.SourceFleet)
	require.NoError(t, err)
	assert.Equal(t, freshness.NilIgnored, tr.Policy())
	tr, err = app.Freshness.Tracker(freshness.SourceNESO)
	require.NoError(t, err)
	assert.Equal(t, freshness.NilMeansNow, tr.Policy())

	assert.Equal(t, neso.ID, app.Carbon.ForRegion("GB").ID())
	assert.Equal(t, watttime.ID, app.Carbon.ForRegion("CAISO_NORTH").ID())
	assert.Equal(t, watttime.ID, app.Carbon.Fallback().ID())

	creds, err := app.Credentials.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-env", creds.SpotFleetAPIKey)
	assert.Equal(t, "alice", creds.WattTimeUsername)

	families, err := app.Registry.Gather()
	require.NoError(t, err)
	assert.NotNil(t, families)
}

func TestNewLoggerLevel(t *testing.T) {
	isolateCLI(t, newMockSecretStore())

	cfg := testConfig(t)
	cfg.Logging.Level = "warn"

	var buf bytes.Buffer
	logger := newLogger(&buf, cfg)
	logger.Info("hidden")
	logger.Warn("shown", "source", "neso")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "source=neso")
}

func TestOpenLogFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logging.File = filepath.Join(t.TempDir(), "logs", "l5.log")

	w, err := openLogFile(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	assert.Equal(t, cfg.Logging.File, w.Filename)
	assert.Equal(t, 10, w.MaxSize)

	newLogger(w, cfg).Info("refresh complete", "cycle", "abc")
	data, err := os.ReadFile(cfg.Logging.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cycle=abc")
}
