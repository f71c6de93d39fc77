// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	l5err "github.com/l5-scheduler/l5/pkg/errors"
	"github.com/zalando/go-keyring"
)

// indexSuffix names the entry holding a JSON list of the keys stored for a
// service; go-keyring cannot enumerate entries on its own.
const indexSuffix = "::keys-index"

// KeyringStore implements Store on top of the OS keyring (Keychain,
// secret-service over D-Bus, or Windows Credential Manager).
type KeyringStore struct{}

var _ Store = (*KeyringStore)(nil)

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (s *KeyringStore) Store(service, key, value string) error {
	if err := checkRef("store", service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return l5err.Wrapf(err, l5err.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}
	return s.updateIndex(service, func(keys []string) []string {
		if slices.Contains(keys, key) {
			return keys
		}
		return append(keys, key)
	})
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if err := checkRef("retrieve", service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return "", l5err.Errorf(l5err.CodeSecretNotFound, "secret %s/%s not found", service, key)
	case err != nil:
		return "", l5err.Wrapf(err, l5err.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkRef("delete", service, key); err != nil {
		return err
	}
	err := keyring.Delete(service, key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return l5err.Errorf(l5err.CodeSecretNotFound, "secret %s/%s not found", service, key)
	case err != nil:
		return l5err.Wrapf(err, l5err.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}
	return s.updateIndex(service, func(keys []string) []string {
		return slices.DeleteFunc(keys, func(k string) bool { return k == key })
	})
}

func (s *KeyringStore) List(service string) ([]string, error) {
	if service == "" {
		return nil, l5err.New(l5err.CodeSecretInvalidInput, "secret list: service must not be empty")
	}
	return loadIndex(service)
}

// updateIndex rewrites the service's key index through fn. An empty index
// is removed from the keyring rather than stored.
func (s *KeyringStore) updateIndex(service string, fn func([]string) []string) error {
	keys, err := loadIndex(service)
	if err != nil {
		return err
	}
	keys = fn(keys)

	indexKey := service + indexSuffix
	if len(keys) == 0 {
		if err := keyring.Delete(service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("removing empty secret index", "service", service, "error", err)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return l5err.Wrapf(err, l5err.CodeSecretListFailure, "encoding key index for %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return l5err.Wrapf(err, l5err.CodeSecretListFailure, "saving key index for %s", service)
	}
	return nil
}

func loadIndex(service string) ([]string, error) {
	raw, err := keyring.Get(service, service+indexSuffix)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, l5err.Wrapf(err, l5err.CodeSecretListFailure, "loading key index for %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, l5err.Wrapf(err, l5err.CodeSecretListFailure, "decoding key index for %s", service)
	}
	return keys, nil
}

func checkRef(op, service, key string) error {
	if service == "" {
		return l5err.New(l5err.CodeSecretInvalidInput, "secret "+op+": service must not be empty")
	}
	if key == "" {
		return l5err.New(l5err.CodeSecretInvalidInput, "secret "+op+": key must not be empty")
	}
	return nil
}
