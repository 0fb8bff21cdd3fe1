// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

package main

import (
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/budgetbook/budgetbook/internal/config"
	"github.com/budgetbook/budgetbook/internal/store"
)

// MigratorFactory creates a Migrator for a database URL.
type MigratorFactory func(databaseURL string) (Migrator, error)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(newStoreMigrator)
}

func newMigrateCmd(factory MigratorFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply, roll back, or inspect the embedded PostgreSQL schema migrations.
The database URL comes from the config file, DATABASE_URL, or --database-url.`,
	}
	cmd.PersistentFlags().String(config.KeyDatabaseURL, "", "PostgreSQL connection URL")

	cmd.AddCommand(newMigrateUpCmd(factory))
	cmd.AddCommand(newMigrateDownCmd(factory))
	cmd.AddCommand(newMigrateVersionCmd(factory))
	cmd.AddCommand(newMigrateForceCmd(factory))
	return cmd
}

func newMigrateUpCmd(factory MigratorFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, factory, func(m Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				version, _, err := m.Version()
				if err != nil {
					return err
				}
				cmd.Printf("Schema is at version %d\n", version)
				return nil
			})
		},
	}
}

func newMigrateDownCmd(factory MigratorFactory) *cobra.Command {
	var (
		steps int
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (one by default)",
		Long: `Roll back the most recent migrations. With --all every migration is
rolled back and all account data is dropped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !all && steps < 1 {
				return oops.Code("INVALID_STEPS").Errorf("--steps must be at least 1, got %d", steps)
			}
			return withMigrator(cmd, factory, func(m Migrator) error {
				var err error
				if all {
					err = m.Down()
				} else {
					err = m.Steps(-steps)
				}
				if err != nil {
					return err
				}
				version, _, err := m.Version()
				if err != nil {
					return err
				}
				cmd.Printf("Schema is at version %d\n", version)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.Flags().BoolVar(&all, "all", false, "roll back every migration")
	return cmd
}

func newMigrateVersionCmd(factory MigratorFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the schema version with applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, factory, func(m Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				latest, err := store.LatestVersion()
				if err != nil {
					return err
				}
				applied, err := m.AppliedMigrations()
				if err != nil {
					return err
				}
				pending, err := m.PendingMigrations()
				if err != nil {
					return err
				}

				state := ""
				if dirty {
					state = " (dirty)"
				}
				cmd.Printf("Version: %d%s\n", version, state)
				cmd.Printf("Latest: %d\n", latest)
				cmd.Printf("Applied: %s\n", formatMigrations(applied))
				cmd.Printf("Pending: %s\n", formatMigrations(pending))
				return nil
			})
		},
	}
}

func newMigrateForceCmd(factory MigratorFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it",
		Long: `Record VERSION as the current schema version and clear the dirty flag.
Use only after repairing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, factory, func(m Migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Forced schema version to %d\n", version)
				return nil
			})
		},
	}
}

// withMigrator resolves the database URL, opens a migrator, and closes it
// after fn returns.
func withMigrator(cmd *cobra.Command, factory MigratorFactory, fn func(Migrator) error) (err error) {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	databaseURL, err := requireDatabaseURL(cfg)
	if err != nil {
		return err
	}

	m, err := factory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(m)
}

// parseForceVersion parses a non-negative migration version.
func parseForceVersion(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, oops.Code("INVALID_VERSION").Errorf("version is required")
	}
	version, err := strconv.Atoi(s)
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("value", s).Wrap(err)
	}
	if version < 0 {
		return 0, oops.Code("INVALID_VERSION").Errorf("version must be non-negative, got %d", version)
	}
	return version, nil
}

// formatMigrations lists migrations by their embedded file name, falling
// back to the bare version for files this binary does not carry.
func formatMigrations(versions []uint) string {
	if len(versions) == 0 {
		return "none"
	}
	parts := make([]string, len(versions))
	for i, v := range versions {
		name, err := store.MigrationName(v)
		if err != nil || name == "" {
			name = strconv.FormatUint(uint64(v), 10)
		}
		parts[i] = name
	}
	return strings.Join(parts, ", ")
}
