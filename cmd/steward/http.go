package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JaimeStill/steward/internal/config"
	"github.com/JaimeStill/steward/internal/infrastructure"
	"github.com/JaimeStill/steward/pkg/lifecycle"
	"github.com/JaimeStill/steward/pkg/middleware"
)

// metricsServer exposes the registry and a readiness probe while a
// command runs.
type metricsServer struct {
	http            *http.Server
	addr            string
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

func newMetricsServer(cfg *config.MetricsConfig, infra *infrastructure.Infrastructure, logger *slog.Logger) *metricsServer {
	logger = logger.With("system", "metrics")

	router := chi.NewRouter()
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(infra.Registry, promhttp.HandlerOpts{}))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !infra.Lifecycle.Ready() {
			http.Error(w, "starting", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})

	mw := middleware.New()
	mw.Use(middleware.Recover(logger))
	mw.Use(middleware.Logger(logger))

	return &metricsServer{
		http: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           mw.Apply(router),
			ReadHeaderTimeout: cfg.ReadTimeoutDuration(),
			ReadTimeout:       cfg.ReadTimeoutDuration(),
		},
		addr:            cfg.Addr(),
		logger:          logger,
		shutdownTimeout: cfg.ShutdownTimeoutDuration(),
	}
}

// Start binds the listener before returning so address conflicts fail the
// command instead of surfacing in the log.
func (s *metricsServer) Start(lc *lifecycle.Coordinator) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}
	s.addr = ln.Addr().String()

	go func() {
		s.logger.Info("metrics listening", "addr", s.addr)
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", "error", err)
		}
	}()

	lc.OnShutdown(func() {
		<-lc.Context().Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("metrics shutdown error", "error", err)
			return
		}
		s.logger.Debug("metrics server stopped")
	})

	return nil
}

// Addr returns the bound listen address.
func (s *metricsServer) Addr() string {
	return s.addr
}
