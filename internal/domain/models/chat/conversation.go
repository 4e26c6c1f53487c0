package chat

import (
	"time"
)

// DefaultConversationTitle is assigned until a title is generated
const DefaultConversationTitle = "New Conversation"

// Conversation is owned by exactly one principal: an authenticated user or a guest session.
type Conversation struct {
	ID                string    `json:"id" db:"id"`
	UUID              string    `json:"uuid" db:"uuid"`
	Title             string    `json:"title" db:"title"`
	UserID            *string   `json:"user_id,omitempty" db:"user_id"`
	SessionID         *string   `json:"session_id,omitempty" db:"session_id"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
	LastMessageAt     time.Time `json:"last_message_at" db:"last_message_at"`
	IsBranched        bool      `json:"is_branched" db:"is_branched"`
	BranchedFrom      *string   `json:"branched_from,omitempty" db:"branched_from"`
	BranchedFromTitle *string   `json:"branched_from_title,omitempty" db:"branched_from_title"`
	IsPublic          bool      `json:"is_public" db:"is_public"`
}

// OwnedByUser reports whether userID is the authenticated owner
func (c *Conversation) OwnedByUser(userID string) bool {
	return userID != "" && c.UserID != nil && *c.UserID == userID
}

// OwnedBySession reports whether sessionID is the owning guest session
func (c *Conversation) OwnedBySession(sessionID string) bool {
	return sessionID != "" && c.SessionID != nil && *c.SessionID == sessionID
}

// ReadableBy applies the read rule: owner, owning guest session (unauthenticated only), or public.
func (c *Conversation) ReadableBy(caller Caller) bool {
	if c.OwnedByUser(caller.UserID) {
		return true
	}
	if c.IsPublic {
		return true
	}
	return !caller.IsAuthenticated() && c.OwnedBySession(caller.SessionID)
}

// ConversationWithLastMessage pairs a conversation with its newest message
type ConversationWithLastMessage struct {
	Conversation
	LastMessage *LastMessagePreview `json:"last_message"`
}

// Caller identifies who is making a request: an authenticated user, a guest session, or neither.
type Caller struct {
	UserID    string
	SessionID string
}

// IsAuthenticated reports whether the caller presented a valid token
func (c Caller) IsAuthenticated() bool {
	return c.UserID != ""
}
