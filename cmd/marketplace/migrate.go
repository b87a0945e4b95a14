package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marketbridge/platform/internal/config"
	"github.com/marketbridge/platform/internal/platform/migrations"
	"github.com/marketbridge/platform/pkg/logger"
)

var databaseURL string

func init() {
	migrateCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL DSN (defaults to DATABASE_URL)")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the PostgreSQL schema",
	Long: `Apply or roll back the embedded PostgreSQL schema migrations.

Examples:
  # Apply all pending migrations
  marketplace migrate up --database-url postgres://localhost/marketplace?sslmode=disable

  # Roll back the last migration
  marketplace migrate down 1

  # Show the current schema version
  marketplace migrate version`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(func(mg *migrations.Migrator) error {
			if err := mg.Up(); err != nil {
				return err
			}
			return printVersion(cmd, mg)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Roll back migrations (all when steps is omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 0
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("steps must be a positive integer, got %q", args[0])
			}
			steps = n
		}
		return withMigrator(func(mg *migrations.Migrator) error {
			if err := mg.Down(steps); err != nil {
				return err
			}
			return printVersion(cmd, mg)
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(func(mg *migrations.Migrator) error {
			return printVersion(cmd, mg)
		})
	},
}

func withMigrator(fn func(*migrations.Migrator) error) error {
	dsn, err := resolveDSN()
	if err != nil {
		return err
	}
	mg, err := migrations.New(dsn, logger.NewDefault("migrate"))
	if err != nil {
		return err
	}
	defer mg.Close()
	return fn(mg)
}

// resolveDSN prefers the flag and falls back to the configured database. The
// rest of the config is not validated so migrations can run before the server
// is switched to postgres.
func resolveDSN() (string, error) {
	if databaseURL != "" {
		return databaseURL, nil
	}
	cfg, err := config.Read(configPath)
	if err != nil {
		return "", err
	}
	if cfg.Database.DSN == "" {
		return "", fmt.Errorf("no database configured: pass --database-url or set DATABASE_URL")
	}
	return cfg.Database.DSN, nil
}

func printVersion(cmd *cobra.Command, mg *migrations.Migrator) error {
	v, dirty, err := mg.Version()
	if err != nil {
		return err
	}
	if dirty {
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty)\n", v)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
	return nil
}
