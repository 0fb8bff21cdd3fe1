// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

package main

import (
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/budgetbook/budgetbook/internal/config"
	"github.com/budgetbook/budgetbook/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the BudgetBook CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budgetbook",
		Short: "BudgetBook - personal finance API",
		Long: `BudgetBook is a personal finance API. This binary serves the
account endpoints (registration, login, current user) backed by PostgreSQL
and manages the database schema.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file path (default: $XDG_CONFIG_HOME/budgetbook/config.yaml if present)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSchemaCmd())

	return cmd
}

// loadConfig resolves configuration for a command. An explicit --config
// must exist; the XDG default is optional.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	path, optional := configFile, false
	if path == "" {
		defaultPath, err := xdg.ConfigFile()
		if err != nil {
			slog.Debug("no default config location", "error", err)
		} else {
			path, optional = defaultPath, true
		}
	}
	return config.Load(path, optional, flags)
}

// requireDatabaseURL is the only check commands other than serve need.
func requireDatabaseURL(cfg *config.Config) (string, error) {
	if cfg.DatabaseURL == "" {
		return "", oops.Code("CONFIG_INVALID").With("key", config.KeyDatabaseURL).
			Errorf("database URL is required (set DATABASE_URL or --%s)", config.KeyDatabaseURL)
	}
	return cfg.DatabaseURL, nil
}
