package datastore

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// ApplyMigrations runs the migrations in migrationsDir against a Postgres DSN.
func ApplyMigrations(migrationsDir, dbURL string) error {
	m, closeFn, err := newMigrate(migrationsDir, dbURL)
	if err != nil {
		return err
	}
	defer closeFn()

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("checking migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in a dirty state (version %d), manual intervention required", version)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Debug("database schema up to date", "version", version)
			return nil
		}
		return fmt.Errorf("applying migrations: %w", err)
	}

	if newVersion, _, _ := m.Version(); newVersion != version {
		slog.Info("migrated database", "from", version, "to", newVersion)
	}
	return nil
}

// Migrate steps the schema up (steps > 0), down (steps < 0) or fully up
// (steps == 0).
func Migrate(migrationsDir, dbURL string, steps int) error {
	m, closeFn, err := newMigrate(migrationsDir, dbURL)
	if err != nil {
		return err
	}
	defer closeFn()

	if steps == 0 {
		err = m.Up()
	} else {
		err = m.Steps(steps)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// MigrateDown reverts every migration.
func MigrateDown(migrationsDir, dbURL string) error {
	m, closeFn, err := newMigrate(migrationsDir, dbURL)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// MigrationVersion returns the current schema version.
func MigrationVersion(migrationsDir, dbURL string) (uint, bool, error) {
	m, closeFn, err := newMigrate(migrationsDir, dbURL)
	if err != nil {
		return 0, false, err
	}
	defer closeFn()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// ForceMigrationVersion marks the schema as version without running anything.
func ForceMigrationVersion(migrationsDir, dbURL string, version int) error {
	m, closeFn, err := newMigrate(migrationsDir, dbURL)
	if err != nil {
		return err
	}
	defer closeFn()
	return m.Force(version)
}

func newMigrate(migrationsDir, dbURL string) (*migrate.Migrate, func(), error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("database ping failed: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("creating migrate driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsDir, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("creating migrate instance: %w", err)
	}
	return m, func() {
		m.Close()
		db.Close()
	}, nil
}
