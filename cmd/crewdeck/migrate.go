// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package main

import (
	"os"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/crewdeck/crewdeck/internal/config"
	"github.com/crewdeck/crewdeck/internal/store"
)

// schemaMigrator wraps the store.Migrator methods the CLI uses.
type schemaMigrator interface {
	Up() error
	Down() error
	Force(version int) error
	Close() error
	Version() (version uint, dirty bool, err error)
	PendingMigrations() ([]uint, error)
	AppliedMigrations() ([]uint, error)
}

// newSchemaMigrator is swapped out in tests.
var newSchemaMigrator = func(databaseURL string) (schemaMigrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate subcommand tree.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}

	cmd.PersistentFlags().String("database.url", "", "Postgres connection URL")

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(newMigrateStatusCmd())
	cmd.AddCommand(newMigrateForceCmd())

	return cmd
}

// migrateDatabaseURL resolves the database URL from the flag or the
// environment. Migrations don't need the full server config, so the
// token secrets the config loader insists on are not required here.
func migrateDatabaseURL(cmd *cobra.Command) (string, error) {
	url, _ := cmd.Flags().GetString("database.url")
	if url == "" {
		url = os.Getenv(config.EnvDatabaseURL)
	}
	if url == "" {
		return "", oops.Code("CONFIG_INVALID").
			With("env", config.EnvDatabaseURL).
			Errorf("database URL is required (--database.url or %s)", config.EnvDatabaseURL)
	}
	return url, nil
}

func withMigrator(cmd *cobra.Command, fn func(m schemaMigrator) error) error {
	databaseURL, err := migrateDatabaseURL(cmd)
	if err != nil {
		return err
	}

	migrator, err := newSchemaMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			cmd.PrintErrln("warning: failed to close migrator:", closeErr)
		}
	}()

	return fn(migrator)
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m schemaMigrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations applied")
				return nil
			})
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (destructive)",
		Long:  `Roll back all migrations, dropping every table and its data.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m schemaMigrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("Migrations rolled back")
				return nil
			})
		},
	}
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m schemaMigrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}

				cmd.Printf("Current version: %d\n", version)
				if dirty {
					cmd.Println("State: DIRTY (a migration failed partway; fix the database and use 'migrate force')")
				}

				applied, err := m.AppliedMigrations()
				if err != nil {
					return err
				}
				pending, err := m.PendingMigrations()
				if err != nil {
					return err
				}

				cmd.Printf("Applied: %d\n", len(applied))
				for _, v := range applied {
					name, nameErr := store.MigrationName(v)
					if nameErr != nil || name == "" {
						name = strconv.FormatUint(uint64(v), 10)
					}
					cmd.Printf("  %s\n", name)
				}

				cmd.Printf("Pending: %d\n", len(pending))
				for _, v := range pending {
					name, nameErr := store.MigrationName(v)
					if nameErr != nil || name == "" {
						name = strconv.FormatUint(uint64(v), 10)
					}
					cmd.Printf("  %s\n", name)
				}
				return nil
			})
		},
	}
}

func newMigrateForceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Set the migration version without running migrations",
		Long: `Set the migration version without running migrations. Only for
recovering from a dirty state after manually fixing the database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("INVALID_VERSION").
					With("input", args[0]).
					Errorf("version must be an integer")
			}
			if version < 0 {
				return oops.Code("INVALID_VERSION").Errorf("version must be non-negative, got %d", version)
			}

			return withMigrator(cmd, func(m schemaMigrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Forced version to %d\n", version)
				return nil
			})
		},
	}
}
