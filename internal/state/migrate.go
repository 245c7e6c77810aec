package state

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// Migrate runs all pending migrations for the store's dialect.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	return migrateDB(ctx, s.db, s.dialect)
}

// MigrationVersion returns the current migration version.
func (s *SQLStore) MigrationVersion(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not opened")
	}
	if err := configureGoose(s.dialect); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, s.db)
}

func migrateDB(ctx context.Context, db *sql.DB, dialect Dialect) error {
	if err := configureGoose(dialect); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, dialect.migrationDir()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func configureGoose(dialect Dialect) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect.gooseName()); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return nil
}
