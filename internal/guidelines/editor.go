// Package guidelines edits the guideline list and prose of the session's
// system prompt. Every edit is persisted before the call returns.
package guidelines

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/JaimeStill/steward/internal/contract"
	"github.com/JaimeStill/steward/internal/session"
)

// Extractor derives guidelines from prompt prose.
type Extractor interface {
	ExtractGuidelines(ctx context.Context, req contract.ExtractRequest) ([]string, error)
}

// Editor applies guideline edits to a session.
type Editor struct {
	state     *session.State
	extractor Extractor
	logger    *slog.Logger
}

func New(state *session.State, extractor Extractor, logger *slog.Logger) *Editor {
	return &Editor{
		state:     state,
		extractor: extractor,
		logger:    logger.With("system", "guidelines"),
	}
}

// List returns the guidelines in order.
func (e *Editor) List() []string {
	return e.state.Prompt().Guidelines
}

// Content returns the prompt prose.
func (e *Editor) Content() string {
	return e.state.Prompt().Content
}

// Add appends the trimmed text. Blank text is ignored. Duplicates are kept.
func (e *Editor) Add(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	return e.state.UpdatePrompt(ctx, func(p *contract.SystemPrompt) bool {
		p.Guidelines = append(p.Guidelines, text)
		return true
	})
}

// Remove deletes the guideline at index. An out of range index is ignored.
func (e *Editor) Remove(ctx context.Context, index int) error {
	return e.state.UpdatePrompt(ctx, func(p *contract.SystemPrompt) bool {
		if index < 0 || index >= len(p.Guidelines) {
			return false
		}
		p.Guidelines = slices.Delete(p.Guidelines, index, index+1)
		return true
	})
}

// ReplaceAll swaps the list for extracted. Blank entries are dropped, and
// if nothing remains the current list is kept.
func (e *Editor) ReplaceAll(ctx context.Context, extracted []string) error {
	next := clean(extracted)
	if len(next) == 0 {
		return nil
	}

	return e.state.UpdatePrompt(ctx, func(p *contract.SystemPrompt) bool {
		if slices.Equal(p.Guidelines, next) {
			return false
		}
		p.Guidelines = next
		return true
	})
}

// SetContent replaces the prompt prose.
func (e *Editor) SetContent(ctx context.Context, text string) error {
	return e.state.UpdatePrompt(ctx, func(p *contract.SystemPrompt) bool {
		if p.Content == text {
			return false
		}
		p.Content = text
		return true
	})
}

// Extract asks the backend for guidelines found in content and applies
// them with ReplaceAll semantics. Blank content is a no-op. On failure the
// list is unchanged and the error wraps ErrExtractFailed. The returned
// slice is what the backend produced.
func (e *Editor) Extract(ctx context.Context, content string, provider contract.Provider, model string) ([]string, error) {
	if strings.TrimSpace(content) == "" {
		return []string{}, nil
	}

	extracted, err := e.extractor.ExtractGuidelines(ctx, contract.ExtractRequest{
		SystemPrompt: content,
		LLMProvider:  provider,
		ModelName:    model,
	})
	if err != nil {
		e.logger.Warn("extraction failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrExtractFailed, err)
	}

	if len(extracted) == 0 {
		e.logger.Info("extraction returned no guidelines, keeping current list")
		return extracted, nil
	}

	return extracted, e.ReplaceAll(ctx, extracted)
}

// ExtractCurrent runs Extract over the session's own prompt and routing.
func (e *Editor) ExtractCurrent(ctx context.Context) ([]string, error) {
	snap := e.state.Snapshot()
	return e.Extract(ctx, snap.Prompt.Content, snap.Provider, snap.Model)
}

func clean(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
