package chat

import (
	"context"

	models "chatstream/internal/domain/models/chat"
)

// SendTurnRequest starts a conversation turn.
// Credential is an optional caller-supplied key for the resolved provider.
type SendTurnRequest struct {
	ConversationID   string                 `json:"conversation_id"`
	Content          string                 `json:"content"`
	Model            string                 `json:"model"`
	Provider         string                 `json:"provider,omitempty"`
	Credential       string                 `json:"credential,omitempty"`
	WebSearchEnabled bool                   `json:"web_search_enabled"`
	ThinkingEnabled  bool                   `json:"thinking_enabled"`
	AttachmentRefs   []models.AttachmentRef `json:"attachment_refs,omitempty"`
	Caller           models.Caller          `json:"-"`
}

// SendTurnResponse identifies the persisted messages and the live stream
type SendTurnResponse struct {
	UserMessage      *models.Message `json:"user_message"`
	AssistantMessage *models.Message `json:"assistant_message"`
	StreamURL        string          `json:"stream_url"`
}

// DeleteTrailingRequest removes messages from a point in time onward
type DeleteTrailingRequest struct {
	ConversationID string        `json:"conversation_id"`
	FromCreatedAt  int64         `json:"from_created_at"` // unix milliseconds
	Inclusive      *bool         `json:"inclusive,omitempty"`
	Caller         models.Caller `json:"-"`
}

// GenerateTitleRequest schedules title/summary generation for a message
type GenerateTitleRequest struct {
	Prompt         string        `json:"prompt"`
	IsTitle        bool          `json:"is_title"`
	MessageID      string        `json:"message_id"`
	ConversationID string        `json:"conversation_id"`
	UserGoogleKey  string        `json:"user_google_api_key,omitempty"`
	Caller         models.Caller `json:"-"`
}

// MessageService is the caller-facing message API
type MessageService interface {
	// SendTurn persists the user message and assistant placeholder, then starts streaming
	SendTurn(ctx context.Context, req *SendTurnRequest) (*SendTurnResponse, error)

	// List returns a conversation's messages if the caller may read it, else an empty list
	List(ctx context.Context, conversationID string, caller models.Caller) ([]models.Message, error)

	DeleteTrailing(ctx context.Context, req *DeleteTrailingRequest) error

	// Cancel stops an in-flight assistant reply owned by the caller
	Cancel(ctx context.Context, messageID string, caller models.Caller) error

	GenerateTitle(ctx context.Context, req *GenerateTitleRequest) error
}
