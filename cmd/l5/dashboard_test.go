// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package main

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/l5-scheduler/l5/internal/freshness"
	"github.com/l5-scheduler/l5/internal/refresh"
	"github.com/l5-scheduler/l5/internal/secrets"
	l5err "github.com/l5-scheduler/l5/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dashboardNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedProber(at time.Time) freshness.Prober {
	return freshness.ProberFunc(func(context.Context) (time.Time, error) { return at, nil })
}

func failingProber(err error) freshness.Prober {
	return freshness.ProberFunc(func(context.Context) (time.Time, error) { return time.Time{}, err })
}

func newTestDashboard(t *testing.T, p freshness.Probers, store *mockSecretStore) dashboardModel {
	t.Helper()

	facade := freshness.NewFacade(p, freshness.Options{StaleAfter: time.Hour})
	facade.SetNowFunc(func() time.Time { return dashboardNow })

	app := &App{
		Freshness:   facade,
		Refresh:     refresh.New(facade, refresh.Options{}),
		Credentials: secrets.NewKeyringCredentials(store, "l5", secrets.Credentials{}),
	}
	app.Config = testConfig(t)

	m := newDashboardModel(app)
	m.now = func() time.Time { return dashboardNow }
	return m
}

func update(t *testing.T, m dashboardModel, msg tea.Msg) (dashboardModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	dm, ok := next.(dashboardModel)
	require.True(t, ok)
	return dm, cmd
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestHeaderLine(t *testing.T) {
	tests := []struct {
		name      string
		nesoAt    *time.Time
		fleetAt   *time.Time
		wantLine  string
		wantStale bool
	}{
		{
			name:      "never observed",
			wantLine:  "Carbon: N/A | Fleet: N/A",
			wantStale: true,
		},
		{
			name:      "both fresh",
			nesoAt:    ptr(dashboardNow.Add(-42 * time.Second)),
			fleetAt:   ptr(dashboardNow.Add(-5 * time.Minute)),
			wantLine:  "Carbon: 42s ago | Fleet: 5m ago",
			wantStale: false,
		},
		{
			name:      "fleet stale",
			nesoAt:    ptr(dashboardNow.Add(-time.Minute)),
			fleetAt:   ptr(dashboardNow.Add(-3 * time.Hour)),
			wantLine:  "Carbon: 1m ago | Fleet: 3h ago",
			wantStale: true,
		},
		{
			name:      "carbon missing",
			fleetAt:   ptr(dashboardNow.Add(-time.Minute)),
			wantLine:  "Carbon: N/A | Fleet: 1m ago",
			wantStale: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := freshness.NewFacade(freshness.Probers{}, freshness.Options{StaleAfter: time.Hour})
			if tt.nesoAt != nil {
				f.UpdateNESO(tt.nesoAt)
			}
			if tt.fleetAt != nil {
				f.UpdateAvailability(tt.fleetAt)
			}

			line, stale := headerLine(f, dashboardNow)
			assert.Equal(t, tt.wantLine, line)
			assert.Equal(t, tt.wantStale, stale)
		})
	}
}

func TestDashboard_ManualRefreshCommitsOnComplete(t *testing.T) {
	nesoAt := dashboardNow.Add(-2 * time.Minute)
	fleetAt := dashboardNow.Add(-10 * time.Minute)
	m := newTestDashboard(t, freshness.Probers{
		NESO:     fixedProber(nesoAt),
		WattTime: failingProber(l5err.New(l5err.CodeSecretCredentialsMissing, "no login")),
		Fleet:    fixedProber(fleetAt),
	}, newMockSecretStore())

	m, cmd := update(t, m, keyRunes("r"))
	require.NotNil(t, cmd)
	assert.True(t, m.coordinator.Busy())

	// A second press while in flight dispatches nothing.
	_, again := update(t, m, keyRunes("r"))
	assert.Nil(t, again)

	done, ok := cmd().(refresh.Done)
	require.True(t, ok)
	assert.Equal(t, refresh.TriggerManual, done.Trigger)

	// The worker computed results but wrote nothing.
	assert.False(t, m.freshness.GetNESO().Observed())

	m, _ = update(t, m, done)
	assert.False(t, m.coordinator.Busy())
	require.True(t, m.freshness.GetNESO().Observed())
	assert.Equal(t, nesoAt, *m.freshness.GetNESO().LastUpdated)
	assert.Equal(t, fleetAt, *m.freshness.GetAvailability().LastUpdated)
	assert.False(t, m.freshness.GetWattTime().Observed())

	view := m.View()
	assert.Contains(t, view, "Carbon: 2m ago | Fleet: 10m ago")
	assert.Contains(t, view, "last probe: missing_credentials")
}

func TestDashboard_TickSchedulesInterval(t *testing.T) {
	m := newTestDashboard(t, freshness.Probers{
		NESO: fixedProber(dashboardNow),
	}, newMockSecretStore())

	m, cmd := update(t, m, refresh.TickMsg{Trigger: refresh.TriggerInitial})
	require.NotNil(t, cmd)
	assert.True(t, m.coordinator.Busy())

	// Interval ticks while busy still return the next tick.
	_, cmd = update(t, m, refresh.TickMsg{Trigger: refresh.TriggerInterval})
	assert.NotNil(t, cmd)
}

func TestDashboard_ClockTick(t *testing.T) {
	m := newTestDashboard(t, freshness.Probers{}, newMockSecretStore())

	tick := time.Date(2026, 3, 1, 9, 8, 7, 0, time.FixedZone("CET", 3600))
	m, cmd := update(t, m, clockTickMsg(tick))
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "08:08:07 UTC")
}

func TestDashboard_Quit(t *testing.T) {
	m := newTestDashboard(t, freshness.Probers{}, newMockSecretStore())

	_, cmd := update(t, m, keyRunes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestDashboard_CredentialsFormSavesAndRefreshes(t *testing.T) {
	store := newMockSecretStore()
	m := newTestDashboard(t, freshness.Probers{
		NESO: fixedProber(dashboardNow),
	}, store)

	m, _ = update(t, m, keyRunes("c"))
	require.NotNil(t, m.form)
	assert.Contains(t, m.View(), "Spot Fleet API key")

	// While the form is open, q is typed rather than quitting.
	m, _ = update(t, m, keyRunes("key-q"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = update(t, m, keyRunes("alice"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = update(t, m, keyRunes("s3cret"))
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	saved, ok := cmd().(credentialsSavedMsg)
	require.True(t, ok)
	require.NoError(t, saved.err)
	assert.Equal(t, "key-q", store.data[secrets.KeySpotFleetAPIKey])
	assert.Equal(t, "alice", store.data[secrets.KeyWattTimeUsername])
	assert.Equal(t, "s3cret", store.data[secrets.KeyWattTimePassword])

	m, cmd = update(t, m, saved)
	assert.Nil(t, m.form)
	require.NotNil(t, cmd)
	assert.True(t, m.coordinator.Busy())

	done, ok := cmd().(refresh.Done)
	require.True(t, ok)
	assert.Equal(t, refresh.TriggerCredentials, done.Trigger)
}

func TestDashboard_CredentialsSaveError(t *testing.T) {
	m := newTestDashboard(t, freshness.Probers{}, newMockSecretStore())

	m, _ = update(t, m, keyRunes("c"))
	require.NotNil(t, m.form)

	m, cmd := update(t, m, credentialsSavedMsg{err: errors.New("keyring locked")})
	assert.Nil(t, cmd)
	require.NotNil(t, m.form)
	assert.Contains(t, m.View(), "keyring locked")
}

func TestDashboard_CredentialsReadErrorShownInForm(t *testing.T) {
	store := newMockSecretStore()
	store.retrieveErr = l5err.New(l5err.CodeSecretStoreFailure, "keyring unavailable")
	m := newTestDashboard(t, freshness.Probers{}, store)

	m, _ = update(t, m, keyRunes("c"))
	require.NotNil(t, m.form)
	require.Error(t, m.form.err)
	assert.True(t, l5err.HasCode(m.form.err, l5err.CodeSecretStoreFailure))
	assert.Contains(t, m.View(), "keyring unavailable")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Nil(t, m.form)
	assert.Empty(t, m.notice)
	assert.NotContains(t, m.View(), "keyring unavailable")
}

func TestDashboard_CredentialsCancel(t *testing.T) {
	m := newTestDashboard(t, freshness.Probers{}, newMockSecretStore())

	m, _ = update(t, m, keyRunes("c"))
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)

	m, _ = update(t, m, cmd())
	assert.Nil(t, m.form)
	assert.False(t, m.coordinator.Busy())
}

func ptr(t time.Time) *time.Time { return &t }
