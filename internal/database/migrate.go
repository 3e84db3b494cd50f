package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func newMigrator(db *sqlx.DB) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}

	return m, nil
}

// MigrateUp applies all pending migrations.
func MigrateUp(db *sqlx.DB, log logger.Logger) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	if upErr := m.Up(); upErr != nil {
		if errors.Is(upErr, migrate.ErrNoChange) {
			log.Info("No pending migrations")
			return nil
		}
		return fmt.Errorf("run migrations: %w", upErr)
	}

	version, _, _ := m.Version()
	log.Info("Migrations applied successfully", logger.Int("version", int(version)))

	return nil
}

// MigrateDown rolls back steps migrations (default: 1).
func MigrateDown(db *sqlx.DB, steps int, log logger.Logger) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	if steps <= 0 {
		steps = 1
	}

	if downErr := m.Steps(-steps); downErr != nil {
		if errors.Is(downErr, migrate.ErrNoChange) {
			log.Info("No migrations to rollback")
			return nil
		}
		return fmt.Errorf("rollback migrations: %w", downErr)
	}

	log.Info("Migrations rolled back successfully", logger.Int("steps", steps))

	return nil
}

// MigrationVersion returns the current schema version and dirty flag.
func MigrationVersion(db *sqlx.DB) (uint, bool, error) {
	m, err := newMigrator(db)
	if err != nil {
		return 0, false, err
	}

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get migration version: %w", err)
	}

	return version, dirty, nil
}
