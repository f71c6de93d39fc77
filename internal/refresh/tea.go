// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package refresh

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Request dispatches a cycle as a Bubble Tea command. The command's message
// is a Done, which the model's Update must pass to Complete. A nil command
// means a cycle is already in flight.
func (c *Coordinator) Request(trigger Trigger) tea.Cmd {
	job, ok := c.Begin(trigger)
	if !ok {
		return nil
	}
	return func() tea.Msg {
		return c.Execute(context.Background(), job)
	}
}

// TickMsg asks the model to request a cycle for Trigger.
type TickMsg struct {
	Trigger Trigger
}

// Schedule returns a command that delivers a TickMsg after d.
func Schedule(d time.Duration, trigger Trigger) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return TickMsg{Trigger: trigger}
	})
}
