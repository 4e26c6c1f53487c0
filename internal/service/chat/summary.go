package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"chatstream/internal/domain"
	models "chatstream/internal/domain/models/chat"
	chatRepo "chatstream/internal/domain/repositories/chat"
	chatSvc "chatstream/internal/domain/services/chat"
)

// SummaryService reads and appends message summaries
type SummaryService struct {
	summaries     chatRepo.SummaryRepository
	conversations chatRepo.ConversationRepository
	messages      chatRepo.MessageReader
	now           func() time.Time
}

func NewSummaryService(
	summaries chatRepo.SummaryRepository,
	conversations chatRepo.ConversationRepository,
	messages chatRepo.MessageReader,
) *SummaryService {
	return &SummaryService{
		summaries:     summaries,
		conversations: conversations,
		messages:      messages,
		now:           time.Now,
	}
}

var _ chatSvc.SummaryService = (*SummaryService)(nil)

func (s *SummaryService) GetByMessage(ctx context.Context, messageID string, caller models.Caller) ([]models.MessageSummary, error) {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []models.MessageSummary{}, nil
		}
		return nil, err
	}
	if ok, err := s.readable(ctx, msg.ConversationID, caller); err != nil || !ok {
		return []models.MessageSummary{}, err
	}
	return s.summaries.ListByMessage(ctx, messageID)
}

func (s *SummaryService) ListByConversation(ctx context.Context, conversationID string, caller models.Caller) ([]models.MessageSummary, error) {
	if ok, err := s.readable(ctx, conversationID, caller); err != nil || !ok {
		return []models.MessageSummary{}, err
	}
	return s.summaries.ListByConversation(ctx, conversationID)
}

// Create appends a summary; summaries are never updated in place
func (s *SummaryService) Create(ctx context.Context, conversationID, messageID, content string) error {
	return s.summaries.Create(ctx, &models.MessageSummary{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		MessageID:      messageID,
		Content:        content,
		CreatedAt:      s.now().UTC(),
	})
}

func (s *SummaryService) readable(ctx context.Context, conversationID string, caller models.Caller) (bool, error) {
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return conv.ReadableBy(caller), nil
}
