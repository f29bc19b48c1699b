package shared

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed sql/sqlite/*.sql sql/postgres/*.sql
var migrationFiles embed.FS

func newMigrationProvider(db *sql.DB, driver string) (*goose.Provider, error) {
	var (
		dialect goose.Dialect
		dir     string
	)

	switch driver {
	case DriverSQLite:
		dialect, dir = goose.DialectSQLite3, "sql/sqlite"
	case DriverPostgres:
		dialect, dir = goose.DialectPostgres, "sql/postgres"
	default:
		return nil, fmt.Errorf("%w: no migrations for driver %q", ErrInvalidConfig, driver)
	}

	fsys, err := fs.Sub(migrationFiles, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	return goose.NewProvider(dialect, db, fsys)
}

// RunMigrations applies all pending migrations for the given driver.
//
// goose tracks applied versions in its own goose_db_version table, so running twice is a no-op.
func RunMigrations(ctx context.Context, db *sql.DB, driver string) error {
	provider, err := newMigrationProvider(db, driver)
	if err != nil {
		return err
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// RollbackMigration rolls back the most recent migration.
func RollbackMigration(ctx context.Context, db *sql.DB, driver string) error {
	provider, err := newMigrationProvider(db, driver)
	if err != nil {
		return err
	}

	if _, err := provider.Down(ctx); err != nil {
		if errors.Is(err, goose.ErrNoNextVersion) {
			return fmt.Errorf("no migrations to rollback")
		}
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	return nil
}

// MigrationVersion reports the current schema version.
func MigrationVersion(ctx context.Context, db *sql.DB, driver string) (int64, error) {
	provider, err := newMigrationProvider(db, driver)
	if err != nil {
		return 0, err
	}
	return provider.GetDBVersion(ctx)
}
