// Package analysis retrieves compliance analyses for chat exchanges and
// schedules those lookups as cancellable delayed tasks.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/steward/internal/contract"
	"github.com/JaimeStill/steward/internal/gateway"
)

var (
	// ErrNotFound indicates the backend has no analysis for the compliance id.
	ErrNotFound = errors.New("analysis not found")
	// ErrTransient indicates the analysis could not be retrieved right now.
	ErrTransient = errors.New("analysis unavailable")
)

// Source is the gateway call the fetcher depends on.
type Source interface {
	Analysis(ctx context.Context, complianceID string) (contract.ComplianceAnalysis, error)
}

// Fetcher looks up analyses and maps transport failures onto ErrNotFound
// and ErrTransient.
type Fetcher struct {
	source  Source
	timeout time.Duration
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher. A positive timeout bounds each lookup.
func NewFetcher(source Source, timeout time.Duration, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		source:  source,
		timeout: timeout,
		logger:  logger.With("system", "analysis"),
	}
}

// Fetch returns the analysis for complianceID. Context cancellation is
// returned unchanged so callers can tell supersession from failure.
func (f *Fetcher) Fetch(ctx context.Context, complianceID string) (contract.ComplianceAnalysis, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	result, err := f.source.Analysis(ctx, complianceID)
	if err != nil {
		return contract.ComplianceAnalysis{}, f.mapError(ctx, complianceID, err)
	}

	if result.ComplianceID == "" {
		result.ComplianceID = complianceID
	}
	return result, nil
}

func (f *Fetcher) mapError(ctx context.Context, complianceID string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	if errors.Is(err, gateway.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, complianceID)
	}
	return fmt.Errorf("%w: %s: %w", ErrTransient, complianceID, err)
}
