// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/l5-scheduler/l5/internal/refresh"
	l5err "github.com/l5-scheduler/l5/pkg/errors"
	pkgfreshness "github.com/l5-scheduler/l5/pkg/freshness"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// statusReport is what `l5 status` prints.
type statusReport struct {
	CheckedAt time.Time             `json:"checked_at" yaml:"checked_at"`
	Sources   []pkgfreshness.Report `json:"sources" yaml:"sources"`
	Carbon    pkgfreshness.Report   `json:"carbon" yaml:"carbon"`
	Failures  []probeFailure        `json:"failures,omitempty" yaml:"failures,omitempty"`
}

type probeFailure struct {
	Source string `json:"source" yaml:"source"`
	Kind   string `json:"kind" yaml:"kind"`
	Error  string `json:"error" yaml:"error"`
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Probe every source once and print freshness",
		Long:  "Run a single refresh cycle against NESO, WattTime and Spot Fleet and print how old each signal is.",
		RunE:  runStatus,
	}

	cmd.Flags().StringP("output", "o", "table", "output format: table, json or yaml")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("output")
	switch format {
	case "table", "json", "yaml":
	default:
		return l5err.Errorf(l5err.CodeCLIInputInvalid, "unknown output format %q (want table, json or yaml)", format)
	}

	app, err := setupApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	report := collectStatus(cmd.Context(), app)

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeStatusTable(out, report)
	}
}

// collectStatus runs one synchronous cycle through the coordinator and
// reads the committed state back from the facade.
func collectStatus(ctx context.Context, app *App) statusReport {
	if ctx == nil {
		ctx = context.Background()
	}

	var failures []probeFailure
	if job, ok := app.Refresh.Begin(refresh.TriggerManual); ok {
		done := app.Refresh.Execute(ctx, job)
		app.Refresh.Complete(done)
		for _, r := range done.Results {
			if r.Err != nil {
				failures = append(failures, probeFailure{
					Source: string(r.Source),
					Kind:   string(r.Err.Kind),
					Error:  r.Err.Error(),
				})
			}
		}
	}

	now := time.Now().UTC()
	return statusReport{
		CheckedAt: now,
		Sources:   app.Freshness.Reports(now),
		Carbon:    app.Freshness.GetCarbonFreshness().Report("carbon", now),
		Failures:  failures,
	}
}

func writeStatusTable(w io.Writer, report statusReport) error {
	staleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	rows := make([][]string, 0, len(report.Sources)+1)
	for _, r := range append(append([]pkgfreshness.Report(nil), report.Sources...), report.Carbon) {
		updated := pkgfreshness.NeverLabel
		if r.LastUpdated != nil {
			updated = r.LastUpdated.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{r.Source, updated, r.Age, fmt.Sprintf("%t", r.Stale)})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SOURCE", "LAST UPDATED", "AGE", "STALE").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row >= 0 && row < len(rows) && rows[row][3] == "true" {
				return staleStyle
			}
			return lipgloss.NewStyle()
		})

	if _, err := fmt.Fprintln(w, t.String()); err != nil {
		return err
	}
	for _, f := range report.Failures {
		if _, err := fmt.Fprintf(w, "%-20s %s (%s)\n", f.Source+":", f.Error, f.Kind); err != nil {
			return err
		}
	}
	return nil
}
