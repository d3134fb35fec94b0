package sqlite

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationStatus reports the schema version recorded by the migrator.
type MigrationStatus struct {
	Version uint
	Dirty   bool
}

// newMigrator binds golang-migrate to the pool's connection. The migrator
// must not be closed: its driver would close the shared *sql.DB.
func newMigrator(pool *ConnectionPool) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}

	driver, err := sqlitemigrate.WithInstance(pool.DB(), &sqlitemigrate.Config{})
	if err != nil {
		return nil, fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("init migrator: %w", err)
	}
	return m, nil
}

// MigrateUp applies every pending migration.
func MigrateUp(pool *ConnectionPool) (MigrationStatus, error) {
	m, err := newMigrator(pool)
	if err != nil {
		return MigrationStatus{}, err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return MigrationStatus{}, fmt.Errorf("apply migrations: %w", err)
	}
	return migrationStatus(m)
}

// MigrateDown rolls back steps migrations.
func MigrateDown(pool *ConnectionPool, steps int) (MigrationStatus, error) {
	if steps <= 0 {
		steps = 1
	}
	m, err := newMigrator(pool)
	if err != nil {
		return MigrationStatus{}, err
	}
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return MigrationStatus{}, fmt.Errorf("roll back migrations: %w", err)
	}
	return migrationStatus(m)
}

// CurrentMigration reports the applied schema version without changing it.
func CurrentMigration(pool *ConnectionPool) (MigrationStatus, error) {
	m, err := newMigrator(pool)
	if err != nil {
		return MigrationStatus{}, err
	}
	return migrationStatus(m)
}

func migrationStatus(m *migrate.Migrate) (MigrationStatus, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("read migration version: %w", err)
	}
	return MigrationStatus{Version: version, Dirty: dirty}, nil
}
