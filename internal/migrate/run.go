// Package migrate applies the SQL migrations shipped under migrations/.
package migrate

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"

	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Run applies all pending migrations from migrationPath against db.
// A fully migrated database is not an error.
func Run(db *sql.DB, migrationPath string, logger *log.Logger) error {
	if db == nil {
		return errors.New("migrate: db is required")
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("creating postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	if logger != nil {
		logger.Println("migrations applied")
	}
	return nil
}
