package chat

import (
	"context"

	models "chatstream/internal/domain/models/chat"
)

// CreateConversationRequest creates (or returns) a conversation by client-chosen UUID
type CreateConversationRequest struct {
	UUID   string        `json:"uuid"`
	Caller models.Caller `json:"-"`
}

// UpdateConversationRequest changes mutable fields; nil fields are left alone
type UpdateConversationRequest struct {
	Title *string `json:"title,omitempty"`
}

// BranchRequest copies a conversation up to a message
type BranchRequest struct {
	ConversationID       string        `json:"-"`
	BranchPointMessageID string        `json:"branch_point_message_id"`
	Caller               models.Caller `json:"-"`
}

// ConversationService is the caller-facing conversation API
type ConversationService interface {
	Create(ctx context.Context, req *CreateConversationRequest) (*models.Conversation, error)
	Get(ctx context.Context, id string, caller models.Caller) (*models.Conversation, error)
	GetByUUID(ctx context.Context, uuid string, caller models.Caller) (*models.Conversation, error)
	List(ctx context.Context, caller models.Caller) ([]models.Conversation, error)
	ListWithLastMessage(ctx context.Context, caller models.Caller) ([]models.ConversationWithLastMessage, error)
	Update(ctx context.Context, id string, req *UpdateConversationRequest, caller models.Caller) (*models.Conversation, error)
	Remove(ctx context.Context, id string, caller models.Caller) error
	Branch(ctx context.Context, req *BranchRequest) (string, error)
	TogglePublic(ctx context.Context, id string, caller models.Caller) (bool, error)
	ClearGuestData(ctx context.Context, sessionID string) error

	// UpdateTitle is internal (background title job); it performs no access check
	UpdateTitle(ctx context.Context, id, title string) error
}

// SummaryService reads generated message summaries
type SummaryService interface {
	GetByMessage(ctx context.Context, messageID string, caller models.Caller) ([]models.MessageSummary, error)
	ListByConversation(ctx context.Context, conversationID string, caller models.Caller) ([]models.MessageSummary, error)

	// Create is internal (background title job)
	Create(ctx context.Context, conversationID, messageID, content string) error
}
