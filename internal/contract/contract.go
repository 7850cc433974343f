// Package contract defines the payload types exchanged with the compliance
// chatbot backend. Optional fields are pointers and optional lists are nil
// when the backend omits them, so "absent" and "empty" stay distinguishable.
package contract

import (
	"encoding/json"
	"slices"
)

// Role identifies the author of a chat turn.
type Role string

// Chat turn authors.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var roles = []Role{
	RoleUser,
	RoleAssistant,
}

// UnmarshalJSON validates that the decoded string is a known role.
func (r *Role) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v := Role(raw)
	if !slices.Contains(roles, v) {
		return ErrInvalidRole
	}
	*r = v
	return nil
}

// SystemPrompt is the operator-curated instruction set sent with every chat turn.
// Guidelines are kept in display order.
type SystemPrompt struct {
	Content    string   `json:"content"`
	Guidelines []string `json:"guidelines"`
}

// Clone returns a deep copy. The copy always carries a non-nil guideline list
// so it serializes as [] rather than null.
func (p SystemPrompt) Clone() SystemPrompt {
	guidelines := make([]string, len(p.Guidelines))
	copy(guidelines, p.Guidelines)
	return SystemPrompt{
		Content:    p.Content,
		Guidelines: guidelines,
	}
}

// ChatMessage is a single turn of the conversation log.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage builds a user turn.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant turn.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}
