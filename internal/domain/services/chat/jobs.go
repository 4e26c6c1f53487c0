package chat

import "context"

// Background job kinds
const (
	JobKindTitle      = "title"
	JobKindTokenCount = "token_count"
)

// TitleJob generates a title (or summary) for a message.
// UserGoogleKey is empty when the host key should be used.
type TitleJob struct {
	Prompt         string `json:"prompt"`
	IsTitle        bool   `json:"is_title"`
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	UserGoogleKey  string `json:"user_google_key,omitempty"`
}

// TokenCountJob annotates attachments consumed by a turn with a prompt-token estimate
type TokenCountJob struct {
	AttachmentIDs []string `json:"attachment_ids"`
	FinalContent  string   `json:"final_content"`
}

// JobScheduler submits background work and returns without waiting for it.
// A job failure never affects the turn that scheduled it.
type JobScheduler interface {
	ScheduleTitle(ctx context.Context, job *TitleJob) error
	ScheduleTokenCount(ctx context.Context, job *TokenCountJob) error
}
