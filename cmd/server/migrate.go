package main

import (
	"fmt"
	"log/slog"

	"github.com/ashureev/learnhub/internal/config"
	"github.com/ashureev/learnhub/internal/store"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending Postgres migrations",
	Long: `Apply all pending migrations to DATABASE_URL and exit.

SQLite databases create their schema on open and need no migration step.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.DBDriver != config.DriverPostgres {
			slog.Info("Nothing to migrate", "driver", cfg.DBDriver)
			return nil
		}
		if err := store.RunMigrations(cfg.DatabaseURL, store.MigrationsFS()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		return nil
	},
}
