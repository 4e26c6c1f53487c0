package chat

import (
	"strings"
	"time"
)

// Attachment is an uploaded file owned by an authenticated user
type Attachment struct {
	ID             string    `json:"id" db:"id"`
	UserID         string    `json:"user_id" db:"user_id"`
	StorageID      string    `json:"storage_id" db:"storage_id"`
	FileName       string    `json:"file_name" db:"file_name"`
	ContentType    string    `json:"content_type" db:"content_type"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	ConversationID *string   `json:"conversation_id,omitempty" db:"conversation_id"`
	PromptTokens   *int      `json:"prompt_tokens,omitempty" db:"prompt_tokens"`
}

// IsImage reports whether the attachment is inlined as an image part
func (a *Attachment) IsImage() bool {
	return strings.HasPrefix(a.ContentType, "image/")
}

// AttachmentWithURL carries a signed, time-limited read URL
type AttachmentWithURL struct {
	Attachment
	URL string `json:"url"`
}

// AttachmentRef is how a turn refers to a previously saved attachment
type AttachmentRef struct {
	AttachmentID string `json:"attachment_id"`
	FileName     string `json:"file_name"`
	ContentType  string `json:"content_type"`
}

// MessageSummary is a generated title or summary for a message. Append-only.
type MessageSummary struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	MessageID      string    `json:"message_id" db:"message_id"`
	Content        string    `json:"content" db:"content"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// StoredAPIKey is a user's provider credential, sealed at rest
type StoredAPIKey struct {
	UserID     string    `json:"-" db:"user_id"`
	Provider   string    `json:"provider" db:"provider"`
	Ciphertext []byte    `json:"-" db:"ciphertext"`
	Hint       string    `json:"hint" db:"hint"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
