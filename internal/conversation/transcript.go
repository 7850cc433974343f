package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/steward/internal/contract"
)

// Transcript is an exportable record of the conversation.
type Transcript struct {
	ID         string                       `json:"id"`
	ExportedAt time.Time                    `json:"exported_at"`
	Prompt     contract.SystemPrompt        `json:"system_prompt"`
	Provider   contract.Provider            `json:"llm_provider"`
	Model      string                       `json:"model_name,omitempty"`
	Messages   []contract.ChatMessage       `json:"messages"`
	Analysis   *contract.ComplianceAnalysis `json:"analysis"`
}

// Transcript captures the session and the latest analysis.
func (c *Controller) Transcript() Transcript {
	state := c.state.Snapshot()
	snap := c.Snapshot()

	return Transcript{
		ID:         uuid.NewString(),
		ExportedAt: time.Now().UTC(),
		Prompt:     state.Prompt,
		Provider:   state.Provider,
		Model:      state.Model,
		Messages:   state.History,
		Analysis:   snap.Analysis,
	}
}

// Blobs is the store transcripts are exported to.
type Blobs interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
}

// Export writes t as JSON to blobs under TranscriptKey and returns the key.
func (t Transcript) Export(ctx context.Context, blobs Blobs, namespace string) (string, error) {
	data, err := t.Encode()
	if err != nil {
		return "", err
	}

	key := TranscriptKey(namespace, t)
	if err := blobs.Upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return "", fmt.Errorf("export transcript: %w", err)
	}
	return key, nil
}

// TranscriptKey returns the blob key for t under namespace.
func TranscriptKey(namespace string, t Transcript) string {
	return path.Join("transcripts", namespace, t.ID+".json")
}

// Encode renders t as indented JSON.
func (t Transcript) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}
	return data, nil
}
