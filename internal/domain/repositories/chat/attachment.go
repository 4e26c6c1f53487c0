package chat

import (
	"context"

	models "chatstream/internal/domain/models/chat"
)

// AttachmentRepository defines data access for attachment metadata
type AttachmentRepository interface {
	Create(ctx context.Context, a *models.Attachment) error
	Get(ctx context.Context, id string) (*models.Attachment, error)
	ListByConversation(ctx context.Context, conversationID string) ([]models.Attachment, error)
	ListByUser(ctx context.Context, userID string) ([]models.Attachment, error)

	// LinkConversation sets conversation_id when it is still unset
	LinkConversation(ctx context.Context, id, conversationID string) error

	// SetPromptTokens annotates each attachment with the same estimate
	SetPromptTokens(ctx context.Context, ids []string, promptTokens int) error

	Delete(ctx context.Context, id string) error
}

// SummaryRepository defines data access for message summaries (append-only)
type SummaryRepository interface {
	Create(ctx context.Context, s *models.MessageSummary) error
	ListByMessage(ctx context.Context, messageID string) ([]models.MessageSummary, error)
	ListByConversation(ctx context.Context, conversationID string) ([]models.MessageSummary, error)
}

// APIKeyRepository stores sealed provider credentials per user
type APIKeyRepository interface {
	Upsert(ctx context.Context, key *models.StoredAPIKey) error
	Get(ctx context.Context, userID, provider string) (*models.StoredAPIKey, error)
	List(ctx context.Context, userID string) ([]models.StoredAPIKey, error)
	Delete(ctx context.Context, userID, provider string) error
}
