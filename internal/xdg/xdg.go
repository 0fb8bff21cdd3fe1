// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

// Package xdg provides XDG Base Directory paths for BudgetBook.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "budgetbook"

// ConfigFileName is the name of the config file inside ConfigDir.
const ConfigFileName = "config.yaml"

// ConfigDir returns the XDG config directory for budgetbook.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", oops.Code("XDG_HOME_UNKNOWN").With("operation", "resolve config dir").Wrap(err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appName), nil
}

// ConfigFile returns the default config file path.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}
