// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package main

import (
	"strings"
	"testing"

	"github.com/l5-scheduler/l5/internal/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorCommand(t *testing.T) {
	store := newMockSecretStore()
	store.data[secrets.KeySpotFleetAPIKey] = "k"
	isolateCLI(t, store)
	fakeUpstreams(t, "2026-03-01T10:30:00Z", "2026-03-01T10:05:00Z")

	out, err := execute(t, "doctor", "--timeout", "5s")
	require.NoError(t, err)

	got := make(map[string]string)
	for _, line := range lines(out) {
		name, value, ok := strings.Cut(line, ":")
		require.True(t, ok, line)
		got[name] = strings.TrimSpace(value)
	}

	assert.Contains(t, got["Binary"], "l5 dev")
	assert.Contains(t, got["Config"], "loaded from")
	assert.Equal(t, "spot fleet key set, watttime login missing", got["Credentials"])
	assert.Contains(t, got["NESO"], "ok, latest 2026-03-01T10:30:00Z")
	assert.Contains(t, got["Spot Fleet"], "ok, latest 2026-03-01T10:05:00Z")
	assert.Contains(t, got["WattTime"], "failed (missing_credentials)")
	assert.Contains(t, got["Log Disk Space"], "available")
}

func TestDoctorCommand_InvalidConfig(t *testing.T) {
	isolateCLI(t, newMockSecretStore())
	t.Setenv("L5_CARBON_NESO_BASE_URL", "not a url")

	out, err := execute(t, "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "Config Errors:")
	assert.Contains(t, out, "carbon.neso.base_url")
	assert.NotContains(t, out, "NESO:")
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{512, "512 bytes"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024 / 2, "1.5 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatBytes(tt.in))
	}
}
