package streaming

import (
	"context"
	"log/slog"

	models "chatstream/internal/domain/models/chat"
	llmSvc "chatstream/internal/domain/services/llm"
)

// ImageFetcher turns a remote image URL into an inline data URL
type ImageFetcher interface {
	FetchDataURL(ctx context.Context, url, mimeType string) (string, error)
}

// HistoryBuilder converts stored conversation messages to provider-ready messages.
// Data loading happens in the caller; the only I/O here is image inlining.
type HistoryBuilder struct {
	images ImageFetcher
	logger *slog.Logger
}

// NewHistoryBuilder creates a new HistoryBuilder
func NewHistoryBuilder(images ImageFetcher, logger *slog.Logger) *HistoryBuilder {
	return &HistoryBuilder{
		images: images,
		logger: logger,
	}
}

// Build prepares history (ordered oldest to newest) for a provider request.
//
//   - A trailing empty assistant placeholder is dropped; some providers reject empty assistant turns.
//   - Multi-part messages are expanded; remote images are fetched and inlined.
//     An image that cannot be fetched is skipped with a warning.
//   - Only user messages keep a multi-part array. Assistant and system messages collapse to their text.
func (b *HistoryBuilder) Build(ctx context.Context, history []models.Message) []llmSvc.Message {
	if n := len(history); n > 0 && history[n-1].IsEmptyPlaceholder() {
		history = history[:n-1]
	}

	messages := make([]llmSvc.Message, 0, len(history))
	for i := range history {
		msg := &history[i]

		role, ok := providerRole(msg.Role)
		if !ok {
			b.logger.Debug("skipping message with unsupported role", "message_id", msg.ID, "role", msg.Role)
			continue
		}

		if len(msg.Parts) == 0 {
			messages = append(messages, llmSvc.Message{
				Role:  role,
				Parts: models.Parts{models.TextPart{Text: msg.Content}},
			})
			continue
		}

		content := b.expandParts(ctx, msg)
		if len(content) == 0 {
			continue
		}

		if role == llmSvc.RoleUser {
			messages = append(messages, llmSvc.Message{Role: role, Parts: content})
			continue
		}

		text := models.JoinText(content)
		if text == "" {
			continue
		}
		messages = append(messages, llmSvc.Message{
			Role:  role,
			Parts: models.Parts{models.TextPart{Text: text}},
		})
	}

	return messages
}

// expandParts keeps text and image parts, inlining remote images.
// Tool and reasoning parts are not replayed to the model.
func (b *HistoryBuilder) expandParts(ctx context.Context, msg *models.Message) models.Parts {
	out := make(models.Parts, 0, len(msg.Parts))
	for _, p := range msg.Parts {
		switch v := p.(type) {
		case models.TextPart:
			out = append(out, v)
		case models.ImagePart:
			img, err := b.inline(ctx, v)
			if err != nil {
				b.logger.Warn("failed to fetch image, skipping",
					"message_id", msg.ID,
					"error", err,
				)
				continue
			}
			out = append(out, img)
		}
	}
	return out
}

func (b *HistoryBuilder) inline(ctx context.Context, img models.ImagePart) (models.ImagePart, error) {
	if _, _, ok := llmSvc.ParseDataURL(img.Image); ok {
		return img, nil
	}
	dataURL, err := b.images.FetchDataURL(ctx, img.Image, img.MimeType)
	if err != nil {
		return models.ImagePart{}, err
	}
	return models.ImagePart{Image: dataURL, MimeType: img.MimeType}, nil
}

func providerRole(role models.Role) (llmSvc.MessageRole, bool) {
	switch role {
	case models.RoleUser:
		return llmSvc.RoleUser, true
	case models.RoleAssistant:
		return llmSvc.RoleAssistant, true
	case models.RoleSystem:
		return llmSvc.RoleSystem, true
	default:
		return "", false
	}
}
