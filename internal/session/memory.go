package session

import (
	"context"
	"slices"
	"sync"

	"github.com/JaimeStill/steward/pkg/lifecycle"
)

type memory struct {
	mu     sync.RWMutex
	values map[Slot][]byte
}

// NewMemory returns a process-local Backend. State is lost on exit.
func NewMemory() Backend {
	return &memory{values: make(map[Slot][]byte)}
}

func (m *memory) Get(_ context.Context, slot Slot) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[slot]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (m *memory) Put(_ context.Context, slot Slot, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[slot] = slices.Clone(value)
	return nil
}

func (m *memory) Delete(_ context.Context, slot Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, slot)
	return nil
}

func (m *memory) Start(*lifecycle.Coordinator) error {
	return nil
}
