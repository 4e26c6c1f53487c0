package chat

import (
	"context"
	"time"

	models "chatstream/internal/domain/models/chat"
)

// ConversationRepository defines data access for conversations
type ConversationRepository interface {
	// Create inserts a conversation; ID, UUID and timestamps are filled in when empty
	Create(ctx context.Context, conv *models.Conversation) error

	// Get returns a conversation by ID regardless of owner
	Get(ctx context.Context, id string) (*models.Conversation, error)

	// GetByUUID returns a conversation by its external UUID
	GetByUUID(ctx context.Context, uuid string) (*models.Conversation, error)

	// FindForOwner returns the conversation with uuid owned by userID or sessionID (exactly one set)
	FindForOwner(ctx context.Context, uuid, userID, sessionID string) (*models.Conversation, error)

	// ListByUser returns a user's conversations, newest last message first
	ListByUser(ctx context.Context, userID string) ([]models.Conversation, error)

	// ListBySession returns a guest session's conversations
	ListBySession(ctx context.Context, sessionID string) ([]models.Conversation, error)

	// UpdateTitle sets the title and bumps updated_at
	UpdateTitle(ctx context.Context, id, title string, at time.Time) error

	// SetPublic sets the public visibility flag
	SetPublic(ctx context.Context, id string, isPublic bool) error

	// LockForUpdate holds a row lock on the conversation until the surrounding
	// transaction ends. Outside a transaction it only checks existence.
	LockForUpdate(ctx context.Context, id string) error

	// Touch records message activity
	Touch(ctx context.Context, id string, at time.Time) error

	// Delete removes a conversation; messages and summaries cascade
	Delete(ctx context.Context, id string) error

	// DeleteBySession removes all conversations of a guest session
	DeleteBySession(ctx context.Context, sessionID string) (int64, error)
}
