package session

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"

	"github.com/JaimeStill/steward/pkg/database"
	"github.com/JaimeStill/steward/pkg/lifecycle"
	"github.com/JaimeStill/steward/pkg/repository"
)

//go:embed migrations
var migrations embed.FS

// Migrate brings the session schema for cfg.Driver up to date.
func Migrate(cfg *database.Config, logger *slog.Logger) error {
	return database.Migrate(cfg, migrations, MigrationDir(cfg.Driver), logger)
}

// NewMigrator returns a migrator over the session schema for cfg.Driver.
func NewMigrator(cfg *database.Config) (*migrate.Migrate, error) {
	return database.NewMigrator(cfg, migrations, MigrationDir(cfg.Driver))
}

// MigrationDir returns the embedded migration directory for driver.
func MigrationDir(driver string) string {
	return "migrations/" + driver
}

type sqlBackend struct {
	db        *sql.DB
	namespace string
	queries   queries
	logger    *slog.Logger
}

type queries struct {
	get    string
	put    string
	delete string
}

func queriesFor(driver string) queries {
	bind := func(n int) string { return "?" }
	if driver == database.DriverPostgres {
		bind = func(n int) string { return fmt.Sprintf("$%d", n) }
	}

	return queries{
		get: fmt.Sprintf(
			"SELECT value FROM session_slots WHERE namespace = %s AND slot = %s",
			bind(1), bind(2),
		),
		put: fmt.Sprintf(
			`INSERT INTO session_slots (namespace, slot, value, updated_at)
			VALUES (%s, %s, %s, %s)
			ON CONFLICT (namespace, slot)
			DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			bind(1), bind(2), bind(3), bind(4),
		),
		delete: fmt.Sprintf(
			"DELETE FROM session_slots WHERE namespace = %s AND slot = %s",
			bind(1), bind(2),
		),
	}
}

// NewSQL returns a Backend over the session_slots table. The schema must
// already exist; see Migrate.
func NewSQL(db database.System, namespace string, logger *slog.Logger) Backend {
	return &sqlBackend{
		db:        db.Connection(),
		namespace: namespace,
		queries:   queriesFor(db.Driver()),
		logger:    logger.With("system", "session-sql", "namespace", namespace),
	}
}

func scanValue(s repository.Scanner) ([]byte, error) {
	var value string
	if err := s.Scan(&value); err != nil {
		return nil, err
	}
	return []byte(value), nil
}

func (b *sqlBackend) Get(ctx context.Context, slot Slot) ([]byte, error) {
	value, err := repository.QueryOne(
		ctx, b.db, b.queries.get,
		[]any{b.namespace, string(slot)},
		scanValue,
	)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, err)
	}
	return value, nil
}

func (b *sqlBackend) Put(ctx context.Context, slot Slot, value []byte) error {
	return repository.ExecExpectOne(
		ctx, b.db, b.queries.put,
		b.namespace, string(slot), string(value), time.Now().UTC(),
	)
}

func (b *sqlBackend) Delete(ctx context.Context, slot Slot) error {
	_, err := b.db.ExecContext(ctx, b.queries.delete, b.namespace, string(slot))
	return err
}

func (b *sqlBackend) Start(*lifecycle.Coordinator) error {
	b.logger.Debug("sql session backend ready")
	return nil
}
