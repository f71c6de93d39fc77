// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package main

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/l5-scheduler/l5/internal/secrets"
	l5err "github.com/l5-scheduler/l5/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSaver struct{ err error }

func (f failingSaver) Save(secrets.Credentials) error { return f.err }

func TestCredentialsModel_Prefill(t *testing.T) {
	m := newCredentialsModel(nil, secrets.Credentials{
		SpotFleetAPIKey:  "k",
		WattTimeUsername: "alice",
		WattTimePassword: "pw",
	})

	got := m.Credentials()
	assert.Equal(t, "k", got.SpotFleetAPIKey)
	assert.Equal(t, "alice", got.WattTimeUsername)
	assert.Equal(t, "pw", got.WattTimePassword)
	assert.NotContains(t, m.View(), "pw", "passwords are masked")
}

func TestCredentialsModel_FocusWraps(t *testing.T) {
	tests := []struct {
		name string
		keys []tea.KeyType
		want int
	}{
		{"tab forward", []tea.KeyType{tea.KeyTab}, fieldWattTimeUsername},
		{"down twice", []tea.KeyType{tea.KeyDown, tea.KeyDown}, fieldWattTimePassword},
		{"wraps forward", []tea.KeyType{tea.KeyTab, tea.KeyTab, tea.KeyTab}, fieldSpotFleetAPIKey},
		{"wraps backward", []tea.KeyType{tea.KeyShiftTab}, fieldWattTimePassword},
		{"enter advances", []tea.KeyType{tea.KeyEnter}, fieldWattTimeUsername},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newCredentialsModel(nil, secrets.Credentials{})
			for _, k := range tt.keys {
				m, _ = m.Update(tea.KeyMsg{Type: k})
			}
			assert.Equal(t, tt.want, m.focus)
		})
	}
}

func TestCredentialsModel_TrimsWhitespace(t *testing.T) {
	m := newCredentialsModel(nil, secrets.Credentials{})
	m, _ = m.Update(keyRunes("  key  "))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m, _ = m.Update(keyRunes(" bob "))

	got := m.Credentials()
	assert.Equal(t, "key", got.SpotFleetAPIKey)
	assert.Equal(t, "bob", got.WattTimeUsername)
}

func TestCredentialsModel_SaveWithoutStore(t *testing.T) {
	m := newCredentialsModel(nil, secrets.Credentials{})
	m.focus = fieldWattTimePassword

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg, ok := cmd().(credentialsSavedMsg)
	require.True(t, ok)
	assert.True(t, l5err.HasCode(msg.err, l5err.CodeCLISetupFailure))
}

func TestCredentialsProgram(t *testing.T) {
	t.Run("quits after save", func(t *testing.T) {
		store := newMockSecretStore()
		p := credentialsProgram{form: newCredentialsModel(secrets.NewKeyringCredentials(store, "l5", secrets.Credentials{}), secrets.Credentials{})}

		next, cmd := p.Update(credentialsSavedMsg{})
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
		assert.True(t, next.(credentialsProgram).saved)
		assert.Contains(t, next.View(), "Credentials saved.")
	})

	t.Run("stays open on error", func(t *testing.T) {
		p := credentialsProgram{form: newCredentialsModel(failingSaver{err: errors.New("denied")}, secrets.Credentials{})}
		p.form.focus = fieldWattTimePassword

		_, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
		require.NotNil(t, cmd)
		msg := cmd()

		next, cmd := p.Update(msg)
		assert.Nil(t, cmd)
		assert.False(t, next.(credentialsProgram).saved)
		assert.Contains(t, next.View(), "denied")
	})

	t.Run("ctrl+c cancels", func(t *testing.T) {
		p := credentialsProgram{form: newCredentialsModel(nil, secrets.Credentials{})}

		next, cmd := p.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		require.NotNil(t, cmd)
		assert.True(t, next.(credentialsProgram).cancelled)
	})
}
