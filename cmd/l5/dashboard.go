// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/l5-scheduler/l5/internal/freshness"
	"github.com/l5-scheduler/l5/internal/refresh"
	"github.com/l5-scheduler/l5/internal/secrets"
	l5err "github.com/l5-scheduler/l5/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	freshStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

// clockFormat is the header clock layout, always in UTC.
const clockFormat = "15:04:05"

type clockTickMsg time.Time

type renderTickMsg time.Time

// dashboardTimers are the cadences the dashboard runs on.
type dashboardTimers struct {
	InitialDelay   time.Duration
	ProbeInterval  time.Duration
	RenderInterval time.Duration
	ClockInterval  time.Duration
}

// dashboardModel is the presentation context: every tracker write happens
// in Update through Coordinator.Complete.
type dashboardModel struct {
	freshness   *freshness.Facade
	coordinator *refresh.Coordinator
	creds       *secrets.KeyringCredentials
	timers      dashboardTimers
	now         func() time.Time

	spinner  spinner.Model
	clock    time.Time
	failures map[freshness.Source]string
	form     *credentialsModel
	notice   string
	width    int
}

func newDashboardModel(app *App) dashboardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	cfg := app.Config
	return dashboardModel{
		freshness:   app.Freshness,
		coordinator: app.Refresh,
		creds:       app.Credentials,
		timers: dashboardTimers{
			InitialDelay:   cfg.Refresh.InitialDelay,
			ProbeInterval:  cfg.Refresh.ProbeInterval,
			RenderInterval: cfg.Refresh.RenderInterval,
			ClockInterval:  cfg.Refresh.ClockInterval,
		},
		now:      time.Now,
		spinner:  sp,
		clock:    time.Now(),
		failures: make(map[freshness.Source]string),
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		refresh.Schedule(m.timers.InitialDelay, refresh.TriggerInitial),
		clockTick(m.timers.ClockInterval),
		renderTick(m.timers.RenderInterval),
	)
}

func clockTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return clockTickMsg(t) })
}

func renderTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return renderTickMsg(t) })
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case refresh.TickMsg:
		cmds := []tea.Cmd{m.coordinator.Request(msg.Trigger)}
		// The initial cycle starts the interval chain; each interval tick
		// schedules the next one whether or not it dispatched.
		if msg.Trigger == refresh.TriggerInitial || msg.Trigger == refresh.TriggerInterval {
			cmds = append(cmds, refresh.Schedule(m.timers.ProbeInterval, refresh.TriggerInterval))
		}
		return m, tea.Batch(cmds...)

	case refresh.Done:
		m.coordinator.Complete(msg)
		m.recordFailures(msg)
		return m, nil

	case clockTickMsg:
		m.clock = time.Time(msg)
		return m, clockTick(m.timers.ClockInterval)

	case renderTickMsg:
		return m, renderTick(m.timers.RenderInterval)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case credentialsCancelledMsg:
		m.form = nil
		return m, nil

	case credentialsSavedMsg:
		if m.form == nil {
			return m, nil
		}
		if msg.err != nil {
			f, _ := m.form.Update(msg)
			m.form = &f
			return m, nil
		}
		m.form = nil
		m.notice = "credentials saved"
		return m, m.coordinator.Request(refresh.TriggerCredentials)

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.form != nil {
			f, cmd := m.form.Update(msg)
			m.form = &f
			return m, cmd
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "r":
			m.notice = ""
			return m, m.coordinator.Request(refresh.TriggerManual)
		case "c":
			return m.openCredentials()
		}
		return m, nil
	}

	if m.form != nil {
		f, cmd := m.form.Update(msg)
		m.form = &f
		return m, cmd
	}
	return m, nil
}

func (m dashboardModel) openCredentials() (tea.Model, tea.Cmd) {
	var (
		current secrets.Credentials
		saver   credentialSaver
		readErr error
	)
	if m.creds != nil {
		stored, err := m.creds.Stored()
		if err != nil {
			readErr = l5err.Wrap(err, l5err.CodeSecretResolveFailure, "reading stored credentials")
		}
		current = stored
		saver = m.creds
	}
	f := newCredentialsModel(saver, current)
	f.err = readErr
	m.form = &f
	m.notice = ""
	return m, f.Init()
}

func (m *dashboardModel) recordFailures(done refresh.Done) {
	for _, r := range done.Results {
		if r.Err != nil {
			m.failures[r.Source] = string(r.Err.Kind)
		} else {
			delete(m.failures, r.Source)
		}
	}
}

// headerLine renders "Carbon: X | Fleet: Y" for the aggregate carbon signal
// and the fleet signal evaluated at now.
func headerLine(f *freshness.Facade, now time.Time) (string, bool) {
	carbon := f.GetCarbonFreshness()
	fleet := f.GetAvailability()
	line := fmt.Sprintf("Carbon: %s | Fleet: %s", carbon.FormatAgeAt(now), fleet.FormatAgeAt(now))
	return line, carbon.IsStaleAt(now) || fleet.IsStaleAt(now)
}

func (m dashboardModel) View() string {
	if m.form != nil {
		return m.form.View()
	}

	now := m.now()
	var b strings.Builder

	header, stale := headerLine(m.freshness, now)
	if stale {
		header = warningStyle.Render(header)
	} else {
		header = freshStyle.Render(header)
	}
	busy := "  "
	if m.coordinator.Busy() {
		busy = m.spinner.View()
	}
	b.WriteString(titleStyle.Render("L5") + "  " + header + " " + busy +
		dimStyle.Render(m.clock.UTC().Format(clockFormat)+" UTC") + "\n\n")

	for _, r := range m.freshness.Reports(now) {
		line := fmt.Sprintf("%-10s %s", r.Source, r.Age)
		if kind, ok := m.failures[freshness.Source(r.Source)]; ok {
			line += dimStyle.Render("  last probe: " + kind)
		}
		if r.Stale {
			b.WriteString(warningStyle.Render("  ! ") + line + "\n")
		} else {
			b.WriteString("    " + line + "\n")
		}
	}

	if m.notice != "" {
		b.WriteString("\n" + successStyle.Render(m.notice) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("r refresh  c credentials  q quit"))
	return boxStyle.Render(b.String())
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	if !isTerminal(os.Stdout) {
		return l5err.New(l5err.CodeCLIInputInvalid,
			"the dashboard needs an interactive terminal; use 'l5 status' instead")
	}

	store := secretStoreFactory()
	cfg, err := loadConfig(store)
	if err != nil {
		return err
	}

	logFile, err := openLogFile(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logFile.Close() }()

	logger := newLogger(logFile, cfg)
	slog.SetDefault(logger)
	app, err := WireApp(cfg, store, logger)
	if err != nil {
		return err
	}

	if _, err := tea.NewProgram(newDashboardModel(app), tea.WithAltScreen()).Run(); err != nil {
		return l5err.Wrap(err, l5err.CodeCLISetupFailure, "running dashboard")
	}
	return nil
}
