package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	chatSvc "chatstream/internal/domain/services/chat"
	llmSvc "chatstream/internal/domain/services/llm"
)

// TitleModel is the Gemini model used for titles and summaries
const TitleModel = "gemini-2.5-flash-lite-preview-06-17"

const titleSystemPrompt = `
- You will generate a short title based on the first message a user begins a conversation with.
- The title should be no more than 10 words.
- Do not use quotes or colons.
- Do not answer the user's question, only generate a title.
`

var (
	errNoGoogleKey = errors.New("No Google API key available. Either provide a user API key or set HOST_GOOGLE_API_KEY in environment variables.")
	errBothKeys    = errors.New("Both user and host Google API keys are missing. Please set HOST_GOOGLE_API_KEY in environment variables.")
)

// TextGeneratorFactory builds a Gemini client for a key
type TextGeneratorFactory interface {
	CreateTextGenerator(ctx context.Context, googleKey string) (llmSvc.TextGenerator, error)
}

// TitleHandler generates a title or summary and stores it
type TitleHandler struct {
	generators    TextGeneratorFactory
	conversations chatSvc.ConversationService
	summaries     chatSvc.SummaryService
	hostGoogleKey string
	logger        *slog.Logger
}

// NewTitleHandler creates the title job handler
func NewTitleHandler(
	generators TextGeneratorFactory,
	conversations chatSvc.ConversationService,
	summaries chatSvc.SummaryService,
	hostGoogleKey string,
	logger *slog.Logger,
) *TitleHandler {
	return &TitleHandler{
		generators:    generators,
		conversations: conversations,
		summaries:     summaries,
		hostGoogleKey: hostGoogleKey,
		logger:        logger,
	}
}

func (h *TitleHandler) Handle(ctx context.Context, payload json.RawMessage) error {
	var job chatSvc.TitleJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return Permanent(fmt.Errorf("decode title job: %w", err))
	}

	key, err := h.googleKey(job.UserGoogleKey)
	if err != nil {
		return Permanent(err)
	}

	gen, err := h.generators.CreateTextGenerator(ctx, key)
	if err != nil {
		return Permanent(fmt.Errorf("create title generator: %w", err))
	}

	raw, err := gen.GenerateText(ctx, TitleModel, titleSystemPrompt, job.Prompt)
	if err != nil {
		return fmt.Errorf("generate title: %w", err)
	}
	title := strings.TrimSpace(raw)

	if job.IsTitle {
		if err := h.conversations.UpdateTitle(ctx, job.ConversationID, title); err != nil {
			return fmt.Errorf("update conversation title: %w", err)
		}
	}
	if err := h.summaries.Create(ctx, job.ConversationID, job.MessageID, title); err != nil {
		return fmt.Errorf("create summary: %w", err)
	}

	h.logger.InfoContext(ctx, "generated title",
		"conversation_id", job.ConversationID,
		"message_id", job.MessageID,
		"is_title", job.IsTitle)
	return nil
}

// googleKey picks the caller's key, then the host key.
// A blank but present user key is reported as both keys missing.
func (h *TitleHandler) googleKey(userKey string) (string, error) {
	if k := strings.TrimSpace(userKey); k != "" {
		return k, nil
	}
	if h.hostGoogleKey != "" {
		return h.hostGoogleKey, nil
	}
	if userKey != "" {
		return "", errBothKeys
	}
	return "", errNoGoogleKey
}
