// Package infrastructure assembles the systems every steward command needs:
// logging, lifecycle coordination, the session backend, the backend gateway,
// metrics, and optional blob storage.
package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JaimeStill/steward/internal/config"
	"github.com/JaimeStill/steward/internal/gateway"
	"github.com/JaimeStill/steward/internal/session"
	"github.com/JaimeStill/steward/pkg/database"
	"github.com/JaimeStill/steward/pkg/lifecycle"
	"github.com/JaimeStill/steward/pkg/storage"
)

// Infrastructure holds the core systems. Database is nil unless the
// session uses the SQL backend; Storage is nil unless it is configured.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Registry  *prometheus.Registry
	Database  database.System
	Session   session.Backend
	Gateway   gateway.System
	Storage   storage.System
}

// New creates an Infrastructure from the application configuration, with
// logs written to logOut. The SQL session schema is migrated here when
// auto-migration is on. Systems are not started; call Start separately.
func New(ctx context.Context, cfg *config.Config, logOut io.Writer) (*Infrastructure, error) {
	logger := cfg.Log.Logger(logOut)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	httpClient, err := gateway.NewHTTPClient(ctx, &cfg.Gateway)
	if err != nil {
		return nil, fmt.Errorf("gateway init failed: %w", err)
	}

	infra := &Infrastructure{
		Lifecycle: lifecycle.New(),
		Logger:    logger,
		Registry:  registry,
		Gateway:   gateway.New(&cfg.Gateway, httpClient, gateway.NewMetrics(registry), logger),
	}

	if err := infra.initSession(cfg); err != nil {
		return nil, err
	}

	if cfg.Storage.Enabled() {
		store, err := storage.New(&cfg.Storage, logger)
		if err != nil {
			return nil, fmt.Errorf("storage init failed: %w", err)
		}
		infra.Storage = store
	}

	return infra, nil
}

func (i *Infrastructure) initSession(cfg *config.Config) error {
	namespace := cfg.Session.Namespace

	switch cfg.Session.Backend {
	case session.BackendSQL:
		if cfg.Session.Migrates() {
			if err := session.Migrate(&cfg.Database, i.Logger); err != nil {
				return fmt.Errorf("session migration failed: %w", err)
			}
		}
		db, err := database.New(&cfg.Database, i.Logger)
		if err != nil {
			return fmt.Errorf("database init failed: %w", err)
		}
		i.Database = db
		i.Session = session.NewSQL(db, namespace, i.Logger)
	case session.BackendRedis:
		i.Session = session.NewRedis(&cfg.Session.Redis, namespace, i.Logger)
	default:
		i.Session = session.NewMemory()
	}

	i.Logger.Debug("session backend ready", "backend", cfg.Session.Backend, "namespace", namespace)
	return nil
}

// Start registers every system with the lifecycle coordinator and waits
// for their startup hooks.
func (i *Infrastructure) Start() error {
	if i.Database != nil {
		if err := i.Database.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("database start failed: %w", err)
		}
	}
	if err := i.Session.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("session start failed: %w", err)
	}
	if i.Storage != nil {
		if err := i.Storage.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("storage start failed: %w", err)
		}
	}

	if err := i.Lifecycle.WaitForStartup(); err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	return nil
}

// Shutdown stops every system, waiting at most timeout.
func (i *Infrastructure) Shutdown(timeout time.Duration) error {
	return i.Lifecycle.Shutdown(timeout)
}
