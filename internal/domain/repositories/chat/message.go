package chat

import (
	"context"
	"time"

	models "chatstream/internal/domain/models/chat"
)

// MessageReader is the read side used by history loading and live observation
type MessageReader interface {
	Get(ctx context.Context, id string) (*models.Message, error)

	// ListByConversation returns messages ordered by created_at ascending
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)

	// CountByRole counts a conversation's messages with the given role
	CountByRole(ctx context.Context, conversationID string, role models.Role) (int, error)

	// Last returns the newest message, or nil when the conversation is empty
	Last(ctx context.Context, conversationID string) (*models.Message, error)
}

// MessageStreamWriter is the narrow write side a streaming run holds.
//
// Every call is conditioned on the message still being incomplete and claimed
// by writerID; a lost claim returns domain.ErrConflict.
type MessageStreamWriter interface {
	// Claim marks an incomplete message as owned by writerID.
	// Fails with ErrConflict if another writer holds it or it is complete.
	Claim(ctx context.Context, messageID, writerID string) error

	// WriteSnapshot persists the full streaming state
	WriteSnapshot(ctx context.Context, messageID, writerID string, snap models.MessageSnapshot) error

	// Finalize writes the sealed state, sets is_complete, clears reasoning and the claim
	Finalize(ctx context.Context, messageID, writerID string, snap models.MessageSnapshot) error
}

// MessageRepository combines message reads, creation, streaming writes and deletes
type MessageRepository interface {
	MessageReader
	MessageStreamWriter

	Create(ctx context.Context, msg *models.Message) error

	// DeleteFrom removes messages created at or after (inclusive) or strictly after cutoff
	DeleteFrom(ctx context.Context, conversationID string, cutoff time.Time, inclusive bool) (int64, error)

	// SealAbandoned finalizes messages left incomplete by a crashed process
	SealAbandoned(ctx context.Context, olderThan time.Time, content string) (int64, error)
}
