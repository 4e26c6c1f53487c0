package chat

import (
	"time"
)

// Role of a message author
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleData      Role = "data"
)

// Message is one entry in a conversation.
//
// Content is the flattened text kept for legacy readers; Parts is authoritative
// once present. IsComplete is false only while an assistant reply streams, and
// Reasoning is scratch space that is cleared when the reply is finalized.
type Message struct {
	ID             string       `json:"id" db:"id"`
	ConversationID string       `json:"conversation_id" db:"conversation_id"`
	Content        string       `json:"content" db:"content"`
	Role           Role         `json:"role" db:"role"`
	Parts          Parts        `json:"parts,omitempty" db:"parts"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	Reasoning      *string      `json:"reasoning,omitempty" db:"reasoning"`
	IsComplete     bool         `json:"is_complete" db:"is_complete"`
	ToolCalls      []ToolCall   `json:"tool_calls,omitempty" db:"tool_calls"`
	ToolOutputs    []ToolOutput `json:"tool_outputs,omitempty" db:"tool_outputs"`
}

// IsEmptyPlaceholder reports whether m is an assistant message with no content yet
func (m *Message) IsEmptyPlaceholder() bool {
	return m.Role == RoleAssistant && m.Content == ""
}

// MessageSnapshot is the full streaming state written after every event
type MessageSnapshot struct {
	Content     string
	Parts       Parts
	Reasoning   string
	ToolCalls   []ToolCall
	ToolOutputs []ToolOutput
}

// NewSnapshot derives the persisted fields from an accumulated part sequence.
// reasoning overrides the reasoning part text when non-empty.
func NewSnapshot(parts Parts, reasoning string) MessageSnapshot {
	if reasoning == "" {
		reasoning = ReasoningText(parts)
	}
	calls, outputs := ProjectTools(parts)
	return MessageSnapshot{
		Content:     JoinText(parts),
		Parts:       parts.Clone(),
		Reasoning:   reasoning,
		ToolCalls:   calls,
		ToolOutputs: outputs,
	}
}

// LastMessagePreview is the newest message of a conversation as shown in a sidebar
type LastMessagePreview struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	IsComplete bool      `json:"is_complete"`
}
