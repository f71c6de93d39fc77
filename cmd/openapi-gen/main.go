// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/l5-scheduler/l5/internal/carbon"
	"github.com/l5-scheduler/l5/internal/carbon/neso"
	"github.com/l5-scheduler/l5/internal/carbon/watttime"
	"github.com/l5-scheduler/l5/internal/freshness"
	"github.com/l5-scheduler/l5/internal/refresh"
	"github.com/l5-scheduler/l5/internal/server"
	"github.com/l5-scheduler/l5/internal/upstream"
	l5err "github.com/l5-scheduler/l5/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/l5.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec builds a status server over unprobed trackers and extracts
// the OpenAPI document huma derives from the route types. No upstream is
// contacted.
func generateSpec() ([]byte, error) {
	client := upstream.NewClient(upstream.Options{})
	registry, err := carbon.NewRegistry(
		watttime.New(client, nil, watttime.Config{}),
		neso.New(client, ""),
	)
	if err != nil {
		return nil, l5err.Errorf(l5err.CodeCLISetupFailure, "building carbon registry: %w", err)
	}

	facade := freshness.NewFacade(freshness.Probers{}, freshness.Options{})
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, server.Services{
		Freshness: facade,
		Carbon:    registry,
		Refresh:   refresh.New(facade, refresh.Options{}),
	})
	if err != nil {
		return nil, l5err.Errorf(l5err.CodeCLISetupFailure, "creating server: %w", err)
	}

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}
