package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"dashboard/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDirtySchema means an earlier migration stopped halfway and the
// database needs manual repair before the snapshot store can open it.
var ErrDirtySchema = errors.New("snapshot schema is dirty")

// SchemaVersion is the migration level of a snapshot database.
type SchemaVersion struct {
	Version uint
	Applied bool
}

// RunMigrations brings the snapshot schema at dbPath up to date and reports
// the resulting version. migrate closes the connection it is handed, so it
// gets its own.
func RunMigrations(dbPath string, logger *log.Logger) (SchemaVersion, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return SchemaVersion{}, fmt.Errorf("open %s for migration: %w", dbPath, err)
	}
	defer conn.Close()

	m, err := snapshotMigrator(conn)
	if err != nil {
		return SchemaVersion{}, err
	}
	defer m.Close()

	before, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		before = 0
	case err != nil:
		return SchemaVersion{}, fmt.Errorf("read schema version: %w", err)
	case dirty:
		return SchemaVersion{Version: before}, fmt.Errorf("%w at version %d", ErrDirtySchema, before)
	}

	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return SchemaVersion{Version: before}, fmt.Errorf("apply snapshot migrations: %w", upErr)
	}
	after, _, err := m.Version()
	if err != nil {
		return SchemaVersion{Version: before}, fmt.Errorf("read schema version: %w", err)
	}

	v := SchemaVersion{Version: after, Applied: after != before}
	if v.Applied {
		logger.Info("Snapshot schema migrated",
			log.FieldComponent, log.ComponentStorage, "from", before, "to", after)
	}
	return v, nil
}

func snapshotMigrator(conn *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(conn, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("snapshot migrator: %w", err)
	}
	return m, nil
}
