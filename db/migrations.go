package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"

	"github.com/milanbella/sa-oauth/config"
	"github.com/milanbella/sa-oauth/logger"
)

//go:embed migrations/mysql/*.sql migrations/sqlite/*.sql
var embedMigrations embed.FS

// Migrate applies all pending schema migrations for the given driver and
// returns the number of migrations applied.
func Migrate(ctx context.Context, sqlDB *sql.DB, driver string) (int, error) {
	provider, err := newProvider(sqlDB, driver)
	if err != nil {
		return 0, logger.LogErr(err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return 0, logger.LogErr(fmt.Errorf("apply migrations: %w", err))
	}

	for _, res := range results {
		logger.Info("applied migration %s in %s", res.Source.Path, res.Duration)
	}

	return len(results), nil
}

func newProvider(sqlDB *sql.DB, driver string) (*goose.Provider, error) {
	var (
		dialect database.Dialect
		dir     string
	)
	switch driver {
	case config.DriverMySQL, "":
		dialect, dir = database.DialectMySQL, "migrations/mysql"
	case config.DriverSQLite:
		dialect, dir = database.DialectSQLite3, "migrations/sqlite"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	migrationFS, err := fs.Sub(embedMigrations, dir)
	if err != nil {
		return nil, fmt.Errorf("create migrations sub filesystem: %w", err)
	}

	provider, err := goose.NewProvider(dialect, sqlDB, migrationFS)
	if err != nil {
		return nil, fmt.Errorf("create goose provider: %w", err)
	}

	return provider, nil
}
