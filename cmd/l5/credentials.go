// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/l5-scheduler/l5/internal/secrets"
	l5err "github.com/l5-scheduler/l5/pkg/errors"
	"github.com/spf13/cobra"
)

// credentialSaver persists the credentials form.
type credentialSaver interface {
	Save(secrets.Credentials) error
}

// credentialsSavedMsg reports the outcome of a save.
type credentialsSavedMsg struct {
	err error
}

// credentialsCancelledMsg is sent when the form is dismissed without saving.
type credentialsCancelledMsg struct{}

const (
	fieldSpotFleetAPIKey = iota
	fieldWattTimeUsername
	fieldWattTimePassword
	fieldCount
)

var credentialLabels = [fieldCount]string{
	"Spot Fleet API key",
	"WattTime username",
	"WattTime password",
}

// credentialsModel edits the three upstream credentials. It is embedded in
// the dashboard and also runs on its own under `l5 credentials`.
type credentialsModel struct {
	inputs [fieldCount]textinput.Model
	focus  int
	saver  credentialSaver
	saving bool
	err    error
}

func newCredentialsModel(saver credentialSaver, current secrets.Credentials) credentialsModel {
	var m credentialsModel
	m.saver = saver

	values := [fieldCount]string{current.SpotFleetAPIKey, current.WattTimeUsername, current.WattTimePassword}
	for i := range m.inputs {
		in := textinput.New()
		in.Prompt = "  "
		in.CharLimit = 256
		in.SetValue(values[i])
		if i != fieldWattTimeUsername {
			in.Placeholder = "paste " + strings.ToLower(credentialLabels[i]) + " here"
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
		} else {
			in.Placeholder = "username"
		}
		m.inputs[i] = in
	}
	m.inputs[0].Focus()
	return m
}

// Credentials returns the form's current values.
func (m credentialsModel) Credentials() secrets.Credentials {
	return secrets.Credentials{
		SpotFleetAPIKey:  strings.TrimSpace(m.inputs[fieldSpotFleetAPIKey].Value()),
		WattTimeUsername: strings.TrimSpace(m.inputs[fieldWattTimeUsername].Value()),
		WattTimePassword: m.inputs[fieldWattTimePassword].Value(),
	}
}

func (m credentialsModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m credentialsModel) Update(msg tea.Msg) (credentialsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case credentialsSavedMsg:
		m.saving = false
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		if m.saving {
			return m, nil
		}
		switch msg.Type {
		case tea.KeyEsc:
			return m, func() tea.Msg { return credentialsCancelledMsg{} }
		case tea.KeyTab, tea.KeyDown:
			return m.setFocus(m.focus + 1), nil
		case tea.KeyShiftTab, tea.KeyUp:
			return m.setFocus(m.focus - 1), nil
		case tea.KeyEnter:
			if m.focus < fieldCount-1 {
				return m.setFocus(m.focus + 1), nil
			}
			m.saving = true
			m.err = nil
			return m, saveCredentialsCmd(m.saver, m.Credentials())
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m credentialsModel) setFocus(i int) credentialsModel {
	i = (i + fieldCount) % fieldCount
	m.inputs[m.focus].Blur()
	m.focus = i
	m.inputs[m.focus].Focus()
	return m
}

func (m credentialsModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("  Credentials  ") + "\n\n")
	for i, in := range m.inputs {
		label := credentialLabels[i]
		if i == m.focus {
			b.WriteString(promptStyle.Render(label) + "\n")
		} else {
			b.WriteString(dimStyle.Render(label) + "\n")
		}
		b.WriteString(in.View() + "\n\n")
	}
	switch {
	case m.saving:
		b.WriteString(dimStyle.Render("saving...") + "\n")
	case m.err != nil:
		b.WriteString(errorStyle.Render("  "+m.err.Error()) + "\n")
	}
	b.WriteString(dimStyle.Render("tab/↑/↓ to move  enter to save  esc to cancel"))
	return boxStyle.Render(b.String())
}

func saveCredentialsCmd(saver credentialSaver, c secrets.Credentials) tea.Cmd {
	return func() tea.Msg {
		if saver == nil {
			return credentialsSavedMsg{err: l5err.New(l5err.CodeCLISetupFailure, "no credential store configured")}
		}
		if err := saver.Save(c); err != nil {
			return credentialsSavedMsg{err: l5err.Wrap(err, l5err.CodeSecretStoreFailure, "saving credentials")}
		}
		return credentialsSavedMsg{}
	}
}

// credentialsProgram wraps credentialsModel as a standalone program that
// quits after a successful save or a cancel.
type credentialsProgram struct {
	form      credentialsModel
	saved     bool
	cancelled bool
}

func (p credentialsProgram) Init() tea.Cmd { return p.form.Init() }

func (p credentialsProgram) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			p.cancelled = true
			return p, tea.Quit
		}
	case credentialsCancelledMsg:
		p.cancelled = true
		return p, tea.Quit
	case credentialsSavedMsg:
		p.form, _ = p.form.Update(msg)
		if msg.err == nil {
			p.saved = true
			return p, tea.Quit
		}
		return p, nil
	}

	var cmd tea.Cmd
	p.form, cmd = p.form.Update(msg)
	return p, cmd
}

func (p credentialsProgram) View() string {
	if p.saved {
		return successStyle.Render("Credentials saved.") + "\n"
	}
	if p.cancelled {
		return ""
	}
	return p.form.View()
}

func newCredentialsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "credentials",
		Short: "Edit the Spot Fleet and WattTime credentials",
		Long:  "Open a form that stores the Spot Fleet API key and WattTime login in the OS keyring.",
		RunE:  runCredentials,
	}
}

func runCredentials(cmd *cobra.Command, _ []string) error {
	if !isTerminal(os.Stdin) {
		return l5err.New(l5err.CodeCLIInputInvalid,
			"l5 credentials needs an interactive terminal; use 'l5 secret set' instead")
	}

	store := secretStoreFactory()
	cfg, err := loadConfig(store)
	if err != nil {
		return err
	}
	creds := secrets.NewKeyringCredentials(store, cfg.Secrets.Service, cfg.Credentials())
	current, err := creds.Stored()
	if err != nil {
		return l5err.Wrap(err, l5err.CodeSecretResolveFailure, "reading stored credentials")
	}

	final, err := tea.NewProgram(credentialsProgram{form: newCredentialsModel(creds, current)}).Run()
	if err != nil {
		return l5err.Wrap(err, l5err.CodeCLISetupFailure, "running credentials form")
	}
	if p, ok := final.(credentialsProgram); ok && p.saved {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored credentials under service %q\n", cfg.Secrets.Service)
	}
	return nil
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
