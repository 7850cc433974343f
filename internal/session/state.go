package session

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/JaimeStill/steward/internal/contract"
)

// State is the injectable, in-memory view of a session. Every mutation is
// applied in memory and then written to its slot before the call returns.
// A failed write is returned as an advisory error; the in-memory mutation
// still stands.
type State struct {
	store  *Store
	logger *slog.Logger

	mu       sync.RWMutex
	prompt   contract.SystemPrompt
	history  []contract.ChatMessage
	provider contract.Provider
	model    string
}

// Open restores every slot from store, substituting defaults for anything
// missing or corrupt.
func Open(ctx context.Context, store *Store, logger *slog.Logger) *State {
	s := &State{
		store:  store,
		logger: logger.With("system", "session-state"),
	}

	s.prompt = Load(ctx, store, SlotSystemPrompt, contract.SystemPrompt{}).Clone()
	s.history = Load(ctx, store, SlotChatHistory, []contract.ChatMessage{})
	if s.history == nil {
		s.history = []contract.ChatMessage{}
	}
	s.model = Load(ctx, store, SlotModel, "")

	stored := Load(ctx, store, SlotProvider, string(contract.DefaultProvider))
	provider, err := contract.ParseProvider(stored)
	if err != nil {
		s.logger.Warn("stored provider rejected, using default", "provider", stored, "error", err)
		provider = contract.DefaultProvider
	}
	s.provider = provider

	return s
}

// Prompt returns a copy of the current system prompt.
func (s *State) Prompt() contract.SystemPrompt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prompt.Clone()
}

// UpdatePrompt applies fn to a copy of the prompt. When fn reports a change
// the copy replaces the prompt and is persisted; otherwise nothing happens.
func (s *State) UpdatePrompt(ctx context.Context, fn func(p *contract.SystemPrompt) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.prompt.Clone()
	if !fn(&next) {
		return nil
	}
	s.prompt = next

	return s.persist(ctx, SlotSystemPrompt, next)
}

// History returns a copy of the message log.
func (s *State) History() []contract.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history)
}

// AppendMessage appends msg to the log.
func (s *State) AppendMessage(ctx context.Context, msg contract.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, msg)
	return s.persist(ctx, SlotChatHistory, s.history)
}

// ClearHistory empties the log and erases its slot. The prompt and routing
// slots are untouched.
func (s *State) ClearHistory(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = []contract.ChatMessage{}
	if err := s.store.Erase(ctx, SlotChatHistory); err != nil {
		s.logger.Warn("history erase failed", "error", err)
		return err
	}
	return nil
}

// Provider returns the selected LLM provider.
func (s *State) Provider() contract.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider
}

// SetProvider validates and selects name. An unknown name leaves the
// selection unchanged and returns contract.ErrUnknownProvider.
func (s *State) SetProvider(ctx context.Context, name string) error {
	provider, err := contract.ParseProvider(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.provider = provider
	return s.persist(ctx, SlotProvider, string(provider))
}

// Model returns the selected model name. Empty means the provider default.
func (s *State) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// SetModel selects a model name; surrounding space is trimmed.
func (s *State) SetModel(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.model = strings.TrimSpace(name)
	return s.persist(ctx, SlotModel, s.model)
}

// Snapshot is a point-in-time copy of every slot.
type Snapshot struct {
	Prompt   contract.SystemPrompt  `json:"system_prompt"`
	History  []contract.ChatMessage `json:"chat_history"`
	Provider contract.Provider      `json:"llm_provider"`
	Model    string                 `json:"model_name,omitempty"`
}

// Snapshot returns a consistent copy of every slot.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Prompt:   s.prompt.Clone(),
		History:  slices.Clone(s.history),
		Provider: s.provider,
		Model:    s.model,
	}
}

func (s *State) persist(ctx context.Context, slot Slot, v any) error {
	if err := Save(ctx, s.store, slot, v); err != nil {
		s.logger.Warn("slot write failed", "slot", slot, "error", err)
		return err
	}
	return nil
}
