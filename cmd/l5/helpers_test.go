// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/l5-scheduler/l5/internal/secrets"
	l5err "github.com/l5-scheduler/l5/pkg/errors"
	"github.com/spf13/viper"
)

// mockSecretStore is an in-memory secrets.Store for testing.
type mockSecretStore struct {
	data        map[string]string // key -> value, service ignored
	retrieveErr error
}

func newMockSecretStore(keys ...string) *mockSecretStore {
	m := &mockSecretStore{data: make(map[string]string)}
	for _, k := range keys {
		m.data[k] = "redacted"
	}
	return m
}

func (m *mockSecretStore) Store(_, key, value string) error {
	m.data[key] = value
	return nil
}

func (m *mockSecretStore) Retrieve(_, key string) (string, error) {
	if m.retrieveErr != nil {
		return "", m.retrieveErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", l5err.Errorf(l5err.CodeSecretNotFound, "not found")
	}
	return v, nil
}

func (m *mockSecretStore) Delete(_, key string) error {
	if _, ok := m.data[key]; !ok {
		return l5err.Errorf(l5err.CodeSecretNotFound, "not found")
	}
	delete(m.data, key)
	return nil
}

func (m *mockSecretStore) List(_ string) ([]string, error) {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// isolateCLI resets global Viper, points HOME at a temp dir so config
// bootstrap stays out of the real home, and installs store as the secret
// store. Environment variables that would leak real endpoints are cleared.
func isolateCLI(t *testing.T, store *mockSecretStore) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("HOME", t.TempDir())
	t.Setenv("SPOT_FLEET_API_KEY", "")
	t.Setenv("SPOT_FLEET_API_BASE_URL", "")

	orig := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return store }
	t.Cleanup(func() { secretStoreFactory = orig })
}

// fakeUpstreams serves a NESO window ending at nesoTo and one Spot Fleet
// group whose latest score was measured at fleetAt. Every source points at
// it through L5_ environment variables.
func fakeUpstreams(t *testing.T, nesoTo, fleetAt string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/neso/intensity/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"from":"2026-03-01T10:00:00Z","to":"` + nesoTo +
			`","intensity":{"forecast":120,"actual":118,"index":"moderate"}}]}`))
	})
	mux.HandleFunc("/fleet/request-groups", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"name":"general"}]`))
	})
	mux.HandleFunc("/fleet/request-groups/1/placement-scores/latest", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"measured_at":"` + fleetAt +
			`","score":7,"availability_zone":"eu-west-1a","target_capacity":10,"request_group_id":1}]`))
	})
	mux.HandleFunc("/watttime/", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unexpected watttime call", http.StatusTeapot)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Setenv("L5_CARBON_NESO_BASE_URL", srv.URL+"/neso")
	t.Setenv("L5_CARBON_WATTTIME_BASE_URL", srv.URL+"/watttime")
	t.Setenv("L5_CAPACITY_BASE_URL", srv.URL+"/fleet")
	t.Setenv("L5_UPSTREAM_TIMEOUT", "2s")
	return srv
}

// execute runs the root command with args and returns combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}
