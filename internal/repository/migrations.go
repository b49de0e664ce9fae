package repository

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// RunMigrations applies the embedded schema for the repository's dialect.
func (r *SQLRepository) RunMigrations() error {
	var (
		driver database.Driver
		err    error
	)
	switch r.dialect {
	case DialectPostgres:
		driver, err = postgres.WithInstance(r.db, &postgres.Config{
			MigrationsTable: "cart_schema_migrations",
		})
	case DialectSQLite:
		driver, err = sqlite.WithInstance(r.db, &sqlite.Config{
			MigrationsTable: "cart_schema_migrations",
		})
	default:
		return fmt.Errorf("unsupported dialect %q", r.dialect)
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations/"+string(r.dialect))
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, string(r.dialect), driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}
