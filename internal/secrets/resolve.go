// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package secrets

import (
	"log/slog"
	"strings"

	l5err "github.com/l5-scheduler/l5/pkg/errors"
	"github.com/spf13/viper"
)

const keyringScheme = "keyring://"

// IsKeyringURI reports whether value uses the keyring:// scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// KeyringURI builds the keyring://service/key reference for a stored secret.
func KeyringURI(service, key string) string {
	return keyringScheme + service + "/" + key
}

// ParseKeyringURI splits keyring://service/key. The key may itself contain
// slashes.
func ParseKeyringURI(uri string) (service, key string, err error) {
	if !IsKeyringURI(uri) {
		return "", "", l5err.Errorf(l5err.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}

	service, key, ok := strings.Cut(strings.TrimPrefix(uri, keyringScheme), "/")
	if !ok || service == "" || key == "" {
		return "", "", l5err.Errorf(l5err.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}
	return service, key, nil
}

// ResolveKeyringURI returns the secret a keyring:// URI points at. Any other
// value is returned unchanged.
func ResolveKeyringURI(store Store, value string) (string, error) {
	if !IsKeyringURI(value) {
		return value, nil
	}

	service, key, err := ParseKeyringURI(value)
	if err != nil {
		return "", err
	}

	secret, err := store.Retrieve(service, key)
	if err != nil {
		return "", l5err.Wrapf(err, l5err.CodeSecretResolveFailure, "resolving keyring URI %q", value)
	}
	return secret, nil
}

// ResolveViperSecrets replaces keyring:// string values in v with the secrets
// they reference. A value that cannot be resolved is logged and cleared, so
// the consumer sees missing credentials rather than a URI posing as a key.
func ResolveViperSecrets(v *viper.Viper, store Store) {
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if !IsKeyringURI(val) {
			continue
		}

		resolved, err := ResolveKeyringURI(store, val)
		if err != nil {
			slog.Warn("unresolved keyring reference in config",
				"config_key", key,
				"error", err,
			)
			v.Set(key, "")
			continue
		}
		v.Set(key, resolved)
	}
}
