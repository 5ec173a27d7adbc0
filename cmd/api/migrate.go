package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/partnerportal/portal/internal/repository"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
		Long:  `Apply, roll back or inspect the embedded PostgreSQL schema migrations.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: withMigrator(func(cmd *cobra.Command, m *repository.Migrator) error {
			cmd.Println("Running migrations...")
			if err := m.Up(); err != nil {
				return oops.With("operation", "migrate up").Wrap(err)
			}
			cmd.Println("Migrations completed successfully")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (drops all data)",
		RunE: withMigrator(func(cmd *cobra.Command, m *repository.Migrator) error {
			cmd.Println("Rolling back migrations...")
			if err := m.Down(); err != nil {
				return oops.With("operation", "migrate down").Wrap(err)
			}
			cmd.Println("Rollback completed successfully")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: withMigrator(func(cmd *cobra.Command, m *repository.Migrator) error {
			version, dirty, err := m.Version()
			if err != nil {
				return oops.With("operation", "migrate version").Wrap(err)
			}
			cmd.Printf("version: %d dirty: %t\n", version, dirty)
			return nil
		}),
	})

	return cmd
}

// withMigrator opens a Migrator from DATABASE_URL for the wrapped command.
// Only the database is needed here, so the full config is not loaded.
func withMigrator(run func(cmd *cobra.Command, m *repository.Migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		databaseURL := os.Getenv("DATABASE_URL")
		if databaseURL == "" {
			return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
		}

		m, err := repository.NewMigrator(databaseURL)
		if err != nil {
			return oops.Code("DB_CONNECT_FAILED").
				With("database_url", redactURL(databaseURL)).
				Errorf("%s", sanitizeError(err, databaseURL))
		}
		defer m.Close()

		return run(cmd, m)
	}
}
