package store

import (
	"context"
	"fmt"

	"github.com/ashureev/learnhub/internal/config"
)

// Open returns the Repository selected by cfg.DBDriver. Postgres migrations
// are applied before the pool is opened.
func Open(ctx context.Context, cfg *config.Config) (Repository, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		if err := RunMigrations(cfg.DatabaseURL, MigrationsFS()); err != nil {
			return nil, err
		}
		return NewPostgres(ctx, cfg.DatabaseURL)
	case config.DriverSQLite, "":
		return NewSQLite(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DBDriver)
	}
}
