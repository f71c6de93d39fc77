// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/l5-scheduler/l5/internal/config"
	"github.com/l5-scheduler/l5/internal/freshness"
	pkgfreshness "github.com/l5-scheduler/l5/pkg/freshness"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check configuration, stored credentials, reachability of every data source and disk space for logs.",
		RunE:  runDoctor,
	}

	cmd.Flags().Duration("timeout", 15*time.Second, "timeout for each source probe")

	return cmd
}

type doctorCheck struct {
	name string
	fn   func() string
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	timeout, _ := cmd.Flags().GetDuration("timeout")

	checks := []doctorCheck{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Config", checkConfig},
	}

	app, err := setupApp(cmd.ErrOrStderr())
	if err != nil {
		checks = append(checks, doctorCheck{"Config Errors", func() string { return err.Error() }})
	} else {
		checks = append(checks, doctorCheck{"Credentials", func() string { return checkCredentials(app) }})
		for _, t := range app.Freshness.Trackers() {
			checks = append(checks, doctorCheck{
				name: sourceTitle(t.Source()),
				fn:   func() string { return checkSource(cmd.Context(), t, timeout) },
			})
		}
		checks = append(checks, doctorCheck{"Log Disk Space", func() string { return checkDiskSpace(logDir(app.Config)) }})
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

func checkBinary() string {
	return fmt.Sprintf("l5 %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkConfig() string {
	cfgFile := viper.ConfigFileUsed()
	if cfgFile != "" {
		return fmt.Sprintf("loaded from %s", cfgFile)
	}
	return "using defaults (no config file found)"
}

// checkCredentials reports which credentials are present, never their values.
func checkCredentials(app *App) string {
	c, err := app.Credentials.Credentials(context.Background())
	if err != nil {
		return fmt.Sprintf("error: %s", err)
	}
	present := func(ok bool) string {
		if ok {
			return "set"
		}
		return "missing"
	}
	return fmt.Sprintf("spot fleet key %s, watttime login %s",
		present(c.SpotFleetAPIKey != ""), present(c.HasWattTime()))
}

// checkSource probes one tracker without committing the result.
func checkSource(ctx context.Context, t *freshness.Tracker, timeout time.Duration) string {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := t.Probe(ctx)
	if !res.OK() {
		return fmt.Sprintf("failed (%s): %s", res.Outcome(), res.Err)
	}
	age := pkgfreshness.FormatAge(time.Since(res.At))
	return fmt.Sprintf("ok, latest %s (%s) in %s",
		res.At.UTC().Format(time.RFC3339), age, res.Elapsed.Round(time.Millisecond))
}

func sourceTitle(s freshness.Source) string {
	switch s {
	case freshness.SourceNESO:
		return "NESO"
	case freshness.SourceWattTime:
		return "WattTime"
	case freshness.SourceFleet:
		return "Spot Fleet"
	}
	return string(s)
}

// logDir is the directory the dashboard writes its log file to.
func logDir(cfg *config.Config) string {
	if cfg.Logging.File != "" {
		return filepath.Dir(cfg.Logging.File)
	}
	dir, err := config.DefaultConfigDir()
	if err != nil {
		return os.TempDir()
	}
	return dir
}

func checkDiskSpace(dir string) string {
	path := dir
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path, _ = os.UserHomeDir()
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
