// Package session persists the operator's working state (system prompt,
// chat history, LLM routing) in named slots that survive restarts.
package session

import (
	"context"
	"errors"

	"github.com/JaimeStill/steward/pkg/lifecycle"
)

// Slot names one independently persisted value.
type Slot string

// Persisted slots.
const (
	SlotSystemPrompt Slot = "system_prompt"
	SlotChatHistory  Slot = "chat_history"
	SlotProvider     Slot = "llm_provider"
	SlotModel        Slot = "model_name"
)

// Slots lists every slot the session persists.
var Slots = []Slot{
	SlotSystemPrompt,
	SlotChatHistory,
	SlotProvider,
	SlotModel,
}

// ErrNotFound is returned by a Backend when a slot has never been written
// or has been erased.
var ErrNotFound = errors.New("slot not found")

// Backend stores raw slot values for a single namespace. Writes are
// last-writer-wins per slot.
type Backend interface {
	// Get returns the stored value or ErrNotFound.
	Get(ctx context.Context, slot Slot) ([]byte, error)
	// Put replaces the stored value.
	Put(ctx context.Context, slot Slot, value []byte) error
	// Delete erases the slot. Deleting an absent slot is not an error.
	Delete(ctx context.Context, slot Slot) error
	// Start registers startup and shutdown hooks with the lifecycle coordinator.
	Start(lc *lifecycle.Coordinator) error
}
