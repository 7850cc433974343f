package database_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/golang-migrate/migrate/v4"

	"github.com/JaimeStill/steward/pkg/database"
	"github.com/JaimeStill/steward/pkg/lifecycle"
)

var discard = slog.New(slog.DiscardHandler)

func TestFinalizeSQLiteDefaults(t *testing.T) {
	cfg := database.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"driver", cfg.Driver, database.DriverSQLite},
		{"path", cfg.Path, "steward.db"},
		{"max_open_conns", cfg.MaxOpenConns, 1},
		{"driver name", cfg.DriverName(), "sqlite"},
		{"conn_timeout", cfg.ConnTimeout, "5s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %v, want %v", tt.got, tt.expected)
			}
		})
	}

	if dsn := cfg.Dsn(); !strings.Contains(dsn, "busy_timeout(5000)") {
		t.Errorf("dsn: got %q", dsn)
	}
}

func TestFinalizePostgresDefaults(t *testing.T) {
	cfg := database.Config{Driver: database.DriverPostgres, Name: "steward", User: "steward"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"host", cfg.Host, "localhost"},
		{"port", cfg.Port, 5432},
		{"ssl_mode", cfg.SSLMode, "disable"},
		{"max_open_conns", cfg.MaxOpenConns, 25},
		{"max_idle_conns", cfg.MaxIdleConns, 5},
		{"driver name", cfg.DriverName(), "pgx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %v, want %v", tt.got, tt.expected)
			}
		})
	}
}

func TestFinalizeEnvOverrides(t *testing.T) {
	t.Setenv("TEST_DB_DRIVER", "postgres")
	t.Setenv("TEST_DB_HOST", "db.internal")
	t.Setenv("TEST_DB_PORT", "5433")
	t.Setenv("TEST_DB_NAME", "envdb")
	t.Setenv("TEST_DB_USER", "envuser")
	t.Setenv("TEST_DB_MAX_OPEN", "50")

	env := &database.Env{
		Driver:       "TEST_DB_DRIVER",
		Host:         "TEST_DB_HOST",
		Port:         "TEST_DB_PORT",
		Name:         "TEST_DB_NAME",
		User:         "TEST_DB_USER",
		MaxOpenConns: "TEST_DB_MAX_OPEN",
	}

	cfg := database.Config{}
	if err := cfg.Finalize(env); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	// the driver override must land before postgres defaults are applied
	if cfg.Driver != database.DriverPostgres || cfg.Port != 5433 || cfg.MaxOpenConns != 50 {
		t.Errorf("config: got %+v", cfg)
	}
	if cfg.MaxIdleConns != 5 {
		t.Errorf("max_idle_conns: got %d, want postgres default 5", cfg.MaxIdleConns)
	}
}

func TestFinalizeValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  database.Config
	}{
		{"unknown driver", database.Config{Driver: "mysql"}},
		{"postgres without name", database.Config{Driver: database.DriverPostgres, User: "u"}},
		{"postgres without user", database.Config{Driver: database.DriverPostgres, Name: "n"}},
		{"bad lifetime", database.Config{ConnMaxLifetime: "forever"}},
		{"bad timeout", database.Config{ConnTimeout: "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Finalize(nil); err == nil {
				t.Error("Finalize() expected error, got nil")
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := database.Config{Driver: database.DriverSQLite, Path: "base.db", ConnTimeout: "5s"}
	base.Merge(&database.Config{Path: "overlay.db"})

	if base.Path != "overlay.db" || base.ConnTimeout != "5s" || base.Driver != database.DriverSQLite {
		t.Errorf("Merge(): got %+v", base)
	}
}

func sqliteConfig(t *testing.T) *database.Config {
	t.Helper()
	cfg := &database.Config{Path: filepath.Join(t.TempDir(), "test.db")}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestStartAndShutdown(t *testing.T) {
	cfg := sqliteConfig(t)

	sys, err := database.New(cfg, discard)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if sys.Driver() != database.DriverSQLite {
		t.Errorf("Driver() = %q", sys.Driver())
	}
	if got := sys.Connection().Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}

	lc := lifecycle.New()
	if err := sys.Start(lc); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := lc.WaitForStartup(); err != nil {
		t.Fatalf("WaitForStartup() error = %v", err)
	}
	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if err := sys.Connection().PingContext(context.Background()); err == nil {
		t.Error("connection should be closed after shutdown")
	}
}

var migrations = fstest.MapFS{
	"sqlite/000001_create_notes.up.sql":   {Data: []byte("CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT NOT NULL);")},
	"sqlite/000001_create_notes.down.sql": {Data: []byte("DROP TABLE notes;")},
}

func TestMigrate(t *testing.T) {
	cfg := sqliteConfig(t)

	if err := database.Migrate(cfg, migrations, "sqlite", discard); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// a second run is a no-op
	if err := database.Migrate(cfg, migrations, "sqlite", discard); err != nil {
		t.Fatalf("Migrate() rerun error = %v", err)
	}

	db, err := database.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.Exec(`INSERT INTO notes (body) VALUES ('hello')`); err != nil {
		t.Errorf("table missing after migrate: %v", err)
	}
}

func TestNewMigratorDown(t *testing.T) {
	cfg := sqliteConfig(t)

	m, err := database.NewMigrator(cfg, migrations, "sqlite")
	if err != nil {
		t.Fatalf("NewMigrator() error = %v", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if v, dirty, err := m.Version(); err != nil || v != 1 || dirty {
		t.Errorf("Version() = %d, %v, %v", v, dirty, err)
	}
	if err := m.Down(); err != nil {
		t.Fatalf("Down() error = %v", err)
	}
	if _, _, err := m.Version(); !errors.Is(err, migrate.ErrNilVersion) {
		t.Errorf("Version() after down: got %v, want ErrNilVersion", err)
	}
}
