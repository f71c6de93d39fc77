// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	l5err "github.com/l5-scheduler/l5/pkg/errors"
)

//go:embed l5.yaml.default
var DefaultConfigYAML []byte

// FileName is the config file name without extension, as discovered by viper.
const FileName = "l5"

// DefaultConfigDir returns ~/.config/l5.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", l5err.Wrap(err, l5err.CodeConfigLoadReadFailure, "resolving home directory")
	}
	return filepath.Join(home, ".config", "l5"), nil
}

// DefaultConfigPath returns ~/.config/l5/l5.yaml.
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName+".yaml"), nil
}

// DefaultLogPath returns ~/.config/l5/l5.log.
func DefaultLogPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName+".log"), nil
}

// WriteDefault writes the commented default config to path with mode 0600.
// An existing file is never overwritten.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return l5err.New(l5err.CodeConfigAlreadyExists, "config file already exists", l5err.Field("path", path))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return l5err.Wrap(err, l5err.CodeConfigLoadReadFailure, "creating config directory")
	}
	if err := os.WriteFile(path, DefaultConfigYAML, 0o600); err != nil {
		return l5err.Wrap(err, l5err.CodeConfigLoadReadFailure, "writing default config")
	}
	return nil
}

// BootstrapConfig writes the default config to ~/.config/l5/l5.yaml when no
// config exists yet. It returns the path written, or "" when nothing was
// written. Failures are logged and never fatal.
func BootstrapConfig() string {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}

	if err := WriteDefault(cfgPath); err != nil {
		if !l5err.IsConflict(err) {
			slog.Debug("skipping config bootstrap", "path", cfgPath, "error", err)
		}
		return ""
	}

	slog.Info("created default config", "path", cfgPath)
	return cfgPath
}
