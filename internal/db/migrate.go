// Package db manages the schema and baseline data of the store.
package db

import (
	"errors"
	"fmt"
	"log/slog"

	migrate "github.com/golang-migrate/migrate/v4"
	// Blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sunforge/solar-epc/internal/models"
	"gorm.io/gorm"
)

// MigrationsSource is where the versioned SQL migrations live.
const MigrationsSource = "file://migrations"

// requiredTables must exist once migrations have run.
var requiredTables = []string{"users", "profiles", "quotations", "quotation_versions", "quotation_items", "token_accesses"}

// Migrate runs AutoMigrate for all models, parents first.
func Migrate(db *gorm.DB) error {
	for _, m := range models.All() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return CheckTables(db)
}

// RunSQLMigrations applies the versioned migrations with golang-migrate.
// url must be a postgres:// URL.
func RunSQLMigrations(source, url string) error {
	m, err := migrate.New(source, url)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, _ := m.Version()
	slog.Info("sql migrations applied", "version", version, "dirty", dirty)
	return nil
}

// CheckTables verifies that the core tables exist.
func CheckTables(db *gorm.DB) error {
	for _, table := range requiredTables {
		if !db.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}
