package db

import (
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var fs embed.FS

func newMigrate(dbPath string) (*migrate.Migrate, error) {
	// Create a new source instance using the embedded migrations
	d, err := iofs.New(fs, "migrations")
	if err != nil {
		return nil, err
	}

	// Create a new migrate instance using the iofs source instance and our SQLite database
	m, err := migrate.NewWithSourceInstance("iofs", d, "sqlite://"+dbPath)
	if err != nil {
		return nil, fmt.Errorf("error creating migrate instance: %w", err)
	}

	return m, nil
}

// Migrate runs the SQLite database migrations using golang-migrate
func Migrate(dbPath string) error {
	fmt.Println("Running migrations...")
	m, err := newMigrate(dbPath)
	if err != nil {
		return err
	}

	// Run the migrations
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	return nil
}

// Rollback rolls back the most recent migration
func Rollback(dbPath string) error {
	fmt.Println("Rolling back last migration...")
	m, err := newMigrate(dbPath)
	if err != nil {
		return err
	}

	if err := m.Steps(-1); err != nil && err != migrate.ErrNoChange {
		return err
	}

	return nil
}
