package database

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// NewMigrator opens a dedicated connection for cfg and returns a migrator
// reading the migrations under dir in fsys. The migration driver owns the
// connection; closing the migrator closes it.
func NewMigrator(cfg *Config, fsys fs.FS, dir string) (*migrate.Migrate, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	// migration drivers may query outside the transaction they hold open
	db.SetMaxOpenConns(0)

	var instance migratedb.Driver
	switch cfg.Driver {
	case DriverPostgres:
		instance, err = pgx.WithInstance(db, &pgx.Config{})
	default:
		instance, err = sqlite.WithInstance(db, &sqlite.Config{})
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migration driver: %w", err)
	}

	source, err := iofs.New(fsys, dir)
	if err != nil {
		instance.Close()
		return nil, fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, cfg.Driver, instance)
	if err != nil {
		source.Close()
		instance.Close()
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// Migrate applies every pending up migration found under dir in fsys.
func Migrate(cfg *Config, fsys fs.FS, dir string, logger *slog.Logger) error {
	logger = logger.With("system", "migrate", "driver", cfg.Driver)

	m, err := NewMigrator(cfg, fsys, dir)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	logger.Info("schema up to date", "version", version, "dirty", dirty)

	return nil
}
