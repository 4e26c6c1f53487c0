package config

import "time"

const (
	// MaxConversationTitleLength is the maximum length for conversation titles.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxConversationTitleLength = 255

	// MaxMessageContentLength caps user-submitted message text.
	MaxMessageContentLength = 100_000

	// MaxFileNameLength is the maximum length for attachment file names.
	MaxFileNameLength = 255

	// GuestMessageLimit is the number of user messages a guest session may
	// send in one conversation.
	GuestMessageLimit = 10

	// MaxToolSteps bounds sequential tool-use rounds in one turn.
	MaxToolSteps = 5

	// WebSearchMaxResults is the result cap sent to the search API.
	WebSearchMaxResults = 5

	// ReasoningBudgetTokens is the thinking budget requested from providers
	// that take one.
	ReasoningBudgetTokens = 8000

	// AttachmentTokenFloor is the minimum prompt-token estimate recorded for
	// an attachment.
	AttachmentTokenFloor = 100

	// UploadURLTTL is how long a generated upload URL stays valid.
	UploadURLTTL = 15 * time.Minute

	// ReadURLTTL is how long a generated attachment read URL stays valid.
	ReadURLTTL = time.Hour

	// MaxUploadBytes caps a single blob upload.
	MaxUploadBytes = 20 << 20

	// AbandonedTurnAge is how long an incomplete assistant message may sit
	// before the abandoned-message sweep seals it.
	AbandonedTurnAge = 10 * time.Minute

	// AbandonedSweepInterval is how often the sweep runs after startup
	AbandonedSweepInterval = time.Minute
)
