package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// RunMigrations applies the embedded migrations for dialect.
//
// sqlite migrates through db itself so in-memory databases see the schema;
// the migrate instance is not closed there because that would close db.
// postgres uses a separate connection, like any other migration client.
func RunMigrations(db *sql.DB, dialect Dialect, dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations/"+dialect.Name())
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	var (
		driver  database.Driver
		cleanup = func() {}
	)
	switch dialect.Name() {
	case "sqlite":
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
		if err != nil {
			return fmt.Errorf("create sqlite driver: %w", err)
		}
	case "postgres":
		migrateDB, err := sql.Open(dialect.DriverName(), dsn)
		if err != nil {
			return fmt.Errorf("open migration database: %w", err)
		}
		driver, err = migratepgx.WithInstance(migrateDB, &migratepgx.Config{})
		if err != nil {
			migrateDB.Close()
			return fmt.Errorf("create pgx driver: %w", err)
		}
	default:
		return fmt.Errorf("no migrations for dialect %q", dialect.Name())
	}

	m, err := migrate.NewWithInstance("iofs", src, dialect.Name(), driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if dialect.Name() == "postgres" {
		cleanup = func() { m.Close() }
	}
	defer cleanup()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
