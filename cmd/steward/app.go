package main

import (
	"context"
	"io"

	"github.com/JaimeStill/steward/internal/analysis"
	"github.com/JaimeStill/steward/internal/config"
	"github.com/JaimeStill/steward/internal/conversation"
	"github.com/JaimeStill/steward/internal/dashboard"
	"github.com/JaimeStill/steward/internal/documents"
	"github.com/JaimeStill/steward/internal/guidelines"
	"github.com/JaimeStill/steward/internal/infrastructure"
	"github.com/JaimeStill/steward/internal/session"
)

// App is one fully wired client: infrastructure, the restored session, and
// the controllers built over it. Nothing is shared between Apps.
type App struct {
	cfg          *config.Config
	infra        *infrastructure.Infrastructure
	state        *session.State
	conversation *conversation.Controller
	guidelines   *guidelines.Editor
	dashboard    *dashboard.Controller
	documents    *documents.Uploader
	metrics      *metricsServer
}

// NewApp starts the infrastructure, restores the session, and builds the
// controllers. Logs go to logOut.
func NewApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*App, error) {
	infra, err := infrastructure.New(ctx, cfg, logOut)
	if err != nil {
		return nil, err
	}

	if err := infra.Start(); err != nil {
		infra.Shutdown(cfg.ShutdownTimeoutDuration())
		return nil, err
	}

	app := &App{
		cfg:   cfg,
		infra: infra,
	}

	if cfg.Metrics.Enabled() {
		app.metrics = newMetricsServer(&cfg.Metrics, infra, infra.Logger)
		if err := app.metrics.Start(infra.Lifecycle); err != nil {
			infra.Shutdown(cfg.ShutdownTimeoutDuration())
			return nil, err
		}
	}

	store := session.NewStore(infra.Session, infra.Logger)
	app.state = session.Open(ctx, store, infra.Logger)

	fetcher := analysis.NewFetcher(infra.Gateway, cfg.Client.AnalysisTimeoutDuration(), infra.Logger)
	app.conversation = conversation.New(
		app.state,
		infra.Gateway,
		fetcher,
		cfg.Client.AnalysisDelayDuration(),
		infra.Logger,
	)
	app.guidelines = guidelines.New(app.state, infra.Gateway, infra.Logger)
	app.dashboard = dashboard.New(infra.Gateway, cfg.Client.RecentLimit, infra.Logger)
	app.documents = documents.New(
		infra.Gateway,
		infra.Storage,
		cfg.Client.MaxDocumentSizeBytes(),
		infra.Logger,
	)

	infra.Logger.Debug(
		"steward ready",
		"version", cfg.Version,
		"env", cfg.Env(),
		"namespace", cfg.Session.Namespace,
	)

	return app, nil
}

// Close stops pending analysis work and shuts the infrastructure down.
func (a *App) Close() error {
	a.conversation.Close()
	return a.infra.Shutdown(a.cfg.ShutdownTimeoutDuration())
}
