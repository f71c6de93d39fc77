// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package secrets

import (
	"context"
	"log/slog"
	"strings"

	l5err "github.com/l5-scheduler/l5/pkg/errors"
)

// Keyring keys for the upstream credentials.
const (
	KeySpotFleetAPIKey  = "spot_fleet_api_key"
	KeyWattTimeUsername = "watttime_username"
	KeyWattTimePassword = "watttime_password"
)

// CredentialKeys lists every key the credentials form manages.
var CredentialKeys = []string{KeySpotFleetAPIKey, KeyWattTimeUsername, KeyWattTimePassword}

// Credentials are the secrets the refresh probes need.
type Credentials struct {
	SpotFleetAPIKey  string
	WattTimeUsername string
	WattTimePassword string
}

// HasWattTime reports whether a WattTime login can be attempted.
func (c Credentials) HasWattTime() bool {
	return strings.TrimSpace(c.WattTimeUsername) != "" && c.WattTimePassword != ""
}

// WattTime returns the trimmed username and the password, or a
// CodeSecretCredentialsMissing error when either is empty.
func (c Credentials) WattTime() (username, password string, err error) {
	if !c.HasWattTime() {
		return "", "", l5err.New(l5err.CodeSecretCredentialsMissing, "missing WattTime username/password")
	}
	return strings.TrimSpace(c.WattTimeUsername), c.WattTimePassword, nil
}

func (c Credentials) get(key string) string {
	switch key {
	case KeySpotFleetAPIKey:
		return c.SpotFleetAPIKey
	case KeyWattTimeUsername:
		return c.WattTimeUsername
	case KeyWattTimePassword:
		return c.WattTimePassword
	}
	return ""
}

func (c *Credentials) set(key, value string) {
	switch key {
	case KeySpotFleetAPIKey:
		c.SpotFleetAPIKey = value
	case KeyWattTimeUsername:
		c.WattTimeUsername = value
	case KeyWattTimePassword:
		c.WattTimePassword = value
	}
}

// CredentialSource gives read-only access to credentials at probe time.
type CredentialSource interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// StaticCredentials is a fixed CredentialSource.
type StaticCredentials Credentials

func (s StaticCredentials) Credentials(context.Context) (Credentials, error) {
	return Credentials(s), nil
}

// KeyringCredentials reads credentials from a Store on every call so a save
// from the credentials form is visible to the next refresh. Non-empty
// overrides (from config or environment) take precedence over the store.
type KeyringCredentials struct {
	store     Store
	service   string
	overrides Credentials
}

var _ CredentialSource = (*KeyringCredentials)(nil)

// NewKeyringCredentials creates a source over store. An empty service
// selects DefaultService.
func NewKeyringCredentials(store Store, service string, overrides Credentials) *KeyringCredentials {
	if service == "" {
		service = DefaultService
	}
	return &KeyringCredentials{store: store, service: service, overrides: overrides}
}

// Credentials loads every key. Absent keys yield empty fields, and so do
// keys the store fails to read, so one broken backend does not block probes
// that can run without them.
func (k *KeyringCredentials) Credentials(_ context.Context) (Credentials, error) {
	return k.load(false)
}

// Stored returns only what is in the store, ignoring overrides. The
// credentials form uses it to prefill its inputs. Unlike Credentials,
// backend failures are returned.
func (k *KeyringCredentials) Stored() (Credentials, error) {
	return NewKeyringCredentials(k.store, k.service, Credentials{}).load(true)
}

func (k *KeyringCredentials) load(strict bool) (Credentials, error) {
	var out Credentials
	for _, key := range CredentialKeys {
		if v := k.overrides.get(key); v != "" {
			out.set(key, v)
			continue
		}
		v, err := k.store.Retrieve(k.service, key)
		if err != nil {
			if l5err.IsNotFound(err) {
				continue
			}
			if strict {
				return Credentials{}, err
			}
			slog.Debug("credential unavailable from store", "service", k.service, "key", key, "error", err)
			continue
		}
		out.set(key, v)
	}
	return out, nil
}

// Save writes non-empty fields and removes cleared ones.
func (k *KeyringCredentials) Save(c Credentials) error {
	for _, key := range CredentialKeys {
		v := c.get(key)
		if v == "" {
			if err := k.store.Delete(k.service, key); err != nil && !l5err.IsNotFound(err) {
				return err
			}
			continue
		}
		if err := k.store.Store(k.service, key, v); err != nil {
			return err
		}
	}
	return nil
}
