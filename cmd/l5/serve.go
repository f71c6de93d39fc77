// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/l5-scheduler/l5/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the refresh loop headless and serve the status API",
		Long:  "Refresh freshness on the configured interval without a terminal and expose it over HTTP with Prometheus metrics.",
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("server.listen_addr", cmd.Flags().Lookup("listen"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	app, err := setupApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	cfg := app.Config

	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Server.ListenAddr,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, server.Services{
		Freshness:     app.Freshness,
		Carbon:        app.Carbon,
		Refresh:       app.Refresh,
		Gatherer:      app.Registry,
		DefaultRegion: cfg.Carbon.Region,
		Version:       version,
	})
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving l5 status on %s\n", cfg.Server.ListenAddr)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	g.Go(func() error {
		return app.Refresh.Run(ctx, cfg.Refresh.InitialDelay, cfg.Refresh.ProbeInterval)
	})
	return g.Wait()
}
