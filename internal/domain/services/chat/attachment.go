package chat

import (
	"context"

	models "chatstream/internal/domain/models/chat"
)

// UploadURLResponse is a signed, time-limited upload target
type UploadURLResponse struct {
	StorageID string `json:"storage_id"`
	UploadURL string `json:"upload_url"`
	ExpiresAt int64  `json:"expires_at"` // unix milliseconds
}

// SaveAttachmentRequest records metadata for an uploaded blob
type SaveAttachmentRequest struct {
	StorageID      string        `json:"storage_id"`
	FileName       string        `json:"file_name"`
	ContentType    string        `json:"content_type"`
	ConversationID *string       `json:"conversation_id,omitempty"`
	Caller         models.Caller `json:"-"`
}

// AttachmentService is the caller-facing attachment API
type AttachmentService interface {
	GenerateUploadURL(ctx context.Context, caller models.Caller) (*UploadURLResponse, error)
	Save(ctx context.Context, req *SaveAttachmentRequest) (*models.Attachment, error)
	Get(ctx context.Context, id string, caller models.Caller) (*models.AttachmentWithURL, error)
	ListForConversation(ctx context.Context, conversationID string, caller models.Caller) ([]models.AttachmentWithURL, error)
	ListForUser(ctx context.Context, caller models.Caller) ([]models.AttachmentWithURL, error)
	Delete(ctx context.Context, id string, caller models.Caller) error

	// UpdateTokenCount is internal (background token job)
	UpdateTokenCount(ctx context.Context, ids []string, promptTokens int) error
}

// APIKeyService stores per-user provider credentials
type APIKeyService interface {
	Put(ctx context.Context, provider, key string, caller models.Caller) (*models.StoredAPIKey, error)
	List(ctx context.Context, caller models.Caller) ([]models.StoredAPIKey, error)
	Delete(ctx context.Context, provider string, caller models.Caller) error

	// Lookup returns the plaintext key for userID and provider, or "" when none is stored
	Lookup(ctx context.Context, userID, provider string) (string, error)
}
