// Package promptfile mirrors a local text file into the system prompt.
package promptfile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Target receives the prompt prose.
type Target interface {
	SetContent(ctx context.Context, text string) error
}

// Read returns the prompt prose stored at path with surrounding space trimmed.
func Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Sync copies the file at path into target once.
func Sync(ctx context.Context, path string, target Target) error {
	content, err := Read(path)
	if err != nil {
		return err
	}
	return target.SetContent(ctx, content)
}

// Watch syncs path into target, then again every time the file is written,
// created, or renamed into place, until ctx ends. The parent directory is
// watched so editors that replace the file on save are followed. A missing
// or unreadable file after the initial sync is logged and skipped.
func Watch(ctx context.Context, path string, target Target, logger *slog.Logger) error {
	logger = logger.With("system", "promptfile", "path", path)

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve prompt file: %w", err)
	}

	if err := Sync(ctx, abs, target); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	logger.Info("watching prompt file")

	for {
		select {
		case <-ctx.Done():
			logger.Info("prompt file watch stopped")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if err := Sync(ctx, abs, target); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					continue
				}
				logger.Warn("prompt file sync failed", "error", err)
				continue
			}
			logger.Debug("prompt file synced", "op", event.Op.String())
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}
