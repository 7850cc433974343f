// Package dashboard tracks prompt versions and recent evaluations and runs
// prompt improvement with optional re-evaluation.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/steward/internal/contract"
	"github.com/JaimeStill/steward/internal/gateway"
)

// User-facing error banners.
const (
	LoadFailedMessage    = "Failed to load dashboard data."
	ImproveFailedMessage = "Prompt improvement failed."
)

var (
	ErrLoadFailed    = errors.New("dashboard load failed")
	ErrImproveFailed = errors.New("prompt improvement failed")
)

// Source is the slice of the backend the dashboard reads and drives.
type Source interface {
	History(ctx context.Context) (contract.PromptHistory, error)
	Improve(ctx context.Context, req contract.ImproveRequest) (contract.ImproveResponse, error)
	RecentEvaluations(ctx context.Context, limit int) ([]contract.EvaluationResult, error)
}

// Snapshot is a consistent copy of the dashboard state. History is nil
// until the first successful load.
type Snapshot struct {
	History      *contract.PromptHistory
	Recent       []contract.EvaluationResult
	Reevaluation *contract.ReEvaluationResult
	Loading      bool
	Error        string
}

// Controller owns the dashboard state.
type Controller struct {
	source      Source
	recentLimit int
	logger      *slog.Logger

	loadMu    sync.Mutex
	improveMu sync.Mutex

	mu           sync.Mutex
	history      *contract.PromptHistory
	recent       []contract.EvaluationResult
	reevaluation *contract.ReEvaluationResult
	loading      bool
	err          string
	changed      chan struct{}
}

// New creates a Controller requesting recentLimit evaluations per load,
// clamped to the range the backend accepts.
func New(source Source, recentLimit int, logger *slog.Logger) *Controller {
	return &Controller{
		source:      source,
		recentLimit: gateway.ClampRecentLimit(recentLimit),
		recent:      []contract.EvaluationResult{},
		logger:      logger.With("system", "dashboard"),
		changed:     make(chan struct{}),
	}
}

// LoadData fetches the prompt history and recent evaluations concurrently.
// Both results are committed together; if either fetch fails the previous
// data stays in place, the error banner is set, and the returned error
// wraps ErrLoadFailed. Overlapping calls run one at a time.
func (c *Controller) LoadData(ctx context.Context) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	var (
		history contract.PromptHistory
		recent  []contract.EvaluationResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = c.source.History(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = c.source.RecentEvaluations(gctx, c.recentLimit)
		return err
	})

	if err := g.Wait(); err != nil {
		c.logger.Error("dashboard load failed", "error", err)
		c.set(func() { c.err = LoadFailedMessage })
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	if recent == nil {
		recent = []contract.EvaluationResult{}
	}

	c.set(func() {
		c.history = &history
		c.recent = recent
		c.err = ""
	})

	c.logger.Debug("dashboard loaded", "versions", len(history.Versions), "evaluations", len(recent))
	return nil
}

// Improve runs prompt improvement and then reloads. The reload starts only
// after the improve call has succeeded, so it observes the new version. On
// failure the error banner is set, the previous re-evaluation batch is kept,
// and the returned error wraps ErrImproveFailed. A failed reload after a
// successful improve is returned as the LoadData error.
func (c *Controller) Improve(ctx context.Context, req contract.ImproveRequest) (contract.ImproveResponse, error) {
	c.improveMu.Lock()
	defer c.improveMu.Unlock()

	c.set(func() {
		c.loading = true
		c.err = ""
	})
	defer c.set(func() { c.loading = false })

	resp, err := c.source.Improve(ctx, req)
	if err != nil {
		c.logger.Error("prompt improvement failed", "error", err)
		c.set(func() { c.err = ImproveFailedMessage })
		return contract.ImproveResponse{}, fmt.Errorf("%w: %w", ErrImproveFailed, err)
	}

	c.logger.Info("prompt improved",
		"new_version", resp.NewVersion.ID,
		"previous_version", resp.PreviousVersion.ID,
		"reevaluated", resp.Reevaluation != nil,
	)

	c.set(func() { c.reevaluation = resp.Reevaluation })

	return resp, c.LoadData(ctx)
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Recent:       slices.Clone(c.recent),
		Reevaluation: c.reevaluation,
		Loading:      c.loading,
		Error:        c.err,
	}
	if c.history != nil {
		history := *c.history
		history.Versions = slices.Clone(c.history.Versions)
		snap.History = &history
	}
	if c.reevaluation != nil {
		batch := *c.reevaluation
		batch.Evaluations = slices.Clone(c.reevaluation.Evaluations)
		snap.Reevaluation = &batch
	}
	return snap
}

// Changed returns a channel closed at the next state change.
func (c *Controller) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

func (c *Controller) set(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn()
	close(c.changed)
	c.changed = make(chan struct{})
}
