package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Store encodes typed values into a Backend. Each slot is guarded by its
// own mutex so concurrent writers never interleave partial writes.
type Store struct {
	backend Backend
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[Slot]*sync.Mutex
}

// NewStore wraps backend with JSON encoding and per-slot locking.
func NewStore(backend Backend, logger *slog.Logger) *Store {
	return &Store{
		backend: backend,
		logger:  logger.With("system", "session"),
		locks:   make(map[Slot]*sync.Mutex),
	}
}

func (s *Store) lock(slot Slot) func() {
	s.mu.Lock()
	l, ok := s.locks[slot]
	if !ok {
		l = &sync.Mutex{}
		s.locks[slot] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Load returns the value stored in slot, or def when the slot is missing,
// unreadable, or corrupt. Anomalies are logged, never returned.
func Load[T any](ctx context.Context, s *Store, slot Slot, def T) T {
	unlock := s.lock(slot)
	defer unlock()

	data, err := s.backend.Get(ctx, slot)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("slot read failed, using default", "slot", slot, "error", err)
		}
		return def
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		s.logger.Warn("slot corrupt, using default", "slot", slot, "error", err)
		return def
	}

	return v
}

// Save encodes v and writes it to slot.
func Save[T any](ctx context.Context, s *Store, slot Slot, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", slot, err)
	}

	unlock := s.lock(slot)
	defer unlock()

	if err := s.backend.Put(ctx, slot, data); err != nil {
		return fmt.Errorf("save %s: %w", slot, err)
	}
	return nil
}

// Erase removes slot so the next Load returns its default.
func (s *Store) Erase(ctx context.Context, slot Slot) error {
	unlock := s.lock(slot)
	defer unlock()

	if err := s.backend.Delete(ctx, slot); err != nil {
		return fmt.Errorf("erase %s: %w", slot, err)
	}
	return nil
}
