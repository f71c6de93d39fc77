// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

// Package secrets stores upstream credentials in the OS keyring and resolves
// keyring:// references found in configuration.
package secrets

// DefaultService is the keyring service name all L5 secrets live under.
const DefaultService = "l5"

// Store provides secret storage keyed by service and key.
type Store interface {
	// Store saves value under service/key, replacing any previous value.
	Store(service, key, value string) error

	// Retrieve returns the value for service/key, or an error carrying
	// CodeSecretNotFound when it does not exist.
	Retrieve(service, key string) (string, error)

	// Delete removes service/key, or fails with CodeSecretNotFound.
	Delete(service, key string) error

	// List returns the key names stored under service.
	List(service string) ([]string, error)
}
