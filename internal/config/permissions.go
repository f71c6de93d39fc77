// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

// InsecurePermissions reports whether the file at path is readable by its
// group or by others. Config files may carry the Spot Fleet API key.
func InsecurePermissions(path string) (bool, fs.FileMode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, 0, err
	}
	perm := info.Mode().Perm()
	return perm&0o044 != 0, perm, nil
}

// WarnInsecurePermissions logs a warning when the config file at path is
// group- or world-readable. It never fails startup.
func WarnInsecurePermissions(path string) {
	if path == "" {
		return
	}

	insecure, perm, err := InsecurePermissions(path)
	if err != nil {
		slog.Debug("could not stat config file for permission check", "path", path, "error", err)
		return
	}
	if insecure {
		slog.Warn("config file is readable by other users",
			"path", path,
			"mode", perm,
			"recommended", "0600",
		)
	}
}
