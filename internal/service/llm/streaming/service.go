package streaming

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"chatstream/internal/config"
	"chatstream/internal/domain"
	models "chatstream/internal/domain/models/chat"
	"chatstream/internal/domain/repositories"
	chatRepo "chatstream/internal/domain/repositories/chat"
	chatSvc "chatstream/internal/domain/services/chat"
)

// Turner starts and cancels orchestrated turns
type Turner interface {
	Start(in *TurnInput)
	Cancel(messageID string) bool
}

// Service implements chatSvc.MessageService.
// It authorizes and persists a turn's messages, then hands off to the orchestrator.
type Service struct {
	conversations chatRepo.ConversationRepository
	messages      chatRepo.MessageRepository
	attachments   chatRepo.AttachmentRepository
	blobs         chatSvc.BlobStore
	txManager     repositories.TransactionManager
	turns         Turner
	jobs          chatSvc.JobScheduler
	logger        *slog.Logger
	now           func() time.Time
}

// NewService creates a new message service
func NewService(
	conversations chatRepo.ConversationRepository,
	messages chatRepo.MessageRepository,
	attachments chatRepo.AttachmentRepository,
	blobs chatSvc.BlobStore,
	txManager repositories.TransactionManager,
	turns Turner,
	jobs chatSvc.JobScheduler,
	logger *slog.Logger,
) *Service {
	return &Service{
		conversations: conversations,
		messages:      messages,
		attachments:   attachments,
		blobs:         blobs,
		txManager:     txManager,
		turns:         turns,
		jobs:          jobs,
		logger:        logger,
		now:           time.Now,
	}
}

// SendTurn persists the user message and an empty assistant placeholder, then starts
// streaming in the background. Authorization failures reject before anything is written.
func (s *Service) SendTurn(ctx context.Context, req *chatSvc.SendTurnRequest) (*chatSvc.SendTurnResponse, error) {
	if err := s.validateSendTurnRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	conv, err := s.authorizeSend(ctx, req.ConversationID, req.Caller)
	if err != nil {
		return nil, err
	}

	parts := models.Parts{}
	if strings.TrimSpace(req.Content) != "" {
		parts = append(parts, models.TextPart{Text: req.Content})
	}

	attachments, err := s.resolveAttachments(ctx, req.AttachmentRefs, req.Caller)
	if err != nil {
		return nil, err
	}
	attachmentIDs := make([]string, 0, len(attachments))
	for _, a := range attachments {
		attachmentIDs = append(attachmentIDs, a.ID)
		if a.IsImage() {
			parts = append(parts, models.ImagePart{Image: a.URL, MimeType: a.ContentType})
		}
	}
	if len(parts) == 0 {
		parts = nil
	}

	now := s.now().UTC()
	userMsg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Content:        req.Content,
		Role:           models.RoleUser,
		Parts:          parts,
		CreatedAt:      now,
		IsComplete:     true,
	}
	// The placeholder must sort strictly after the user message
	assistantMsg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Content:        "",
		Role:           models.RoleAssistant,
		CreatedAt:      now.Add(time.Millisecond),
		IsComplete:     false,
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		// Counting under the row lock keeps concurrent guest sends from both passing the cap
		if !req.Caller.IsAuthenticated() {
			if err := s.conversations.LockForUpdate(txCtx, conv.ID); err != nil {
				return fmt.Errorf("lock conversation: %w", err)
			}
			if err := s.checkGuestCap(txCtx, conv.ID); err != nil {
				return err
			}
		}
		for _, a := range attachments {
			if a.ConversationID != nil {
				continue
			}
			if err := s.attachments.LinkConversation(txCtx, a.ID, conv.ID); err != nil {
				return fmt.Errorf("link attachment %s: %w", a.ID, err)
			}
		}
		if err := s.messages.Create(txCtx, userMsg); err != nil {
			return fmt.Errorf("create user message: %w", err)
		}
		if err := s.messages.Create(txCtx, assistantMsg); err != nil {
			return fmt.Errorf("create assistant message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	history, err := s.messages.ListByConversation(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	s.logger.Info("turn messages created",
		"conversation_id", conv.ID,
		"user_message_id", userMsg.ID,
		"assistant_message_id", assistantMsg.ID,
		"model", req.Model,
		"attachments", len(attachmentIDs),
		"history", len(history),
	)

	s.turns.Start(&TurnInput{
		ConversationID:     conv.ID,
		AssistantMessageID: assistantMsg.ID,
		History:            history,
		Model:              req.Model,
		Provider:           req.Provider,
		Credential:         req.Credential,
		UserID:             req.Caller.UserID,
		WebSearchEnabled:   req.WebSearchEnabled,
		ThinkingEnabled:    req.ThinkingEnabled,
		AttachmentIDs:      attachmentIDs,
	})

	if err := s.conversations.Touch(ctx, conv.ID, s.now().UTC()); err != nil {
		s.logger.Warn("failed to record conversation activity",
			"conversation_id", conv.ID,
			"error", err,
		)
	}

	return &chatSvc.SendTurnResponse{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		StreamURL:        fmt.Sprintf("/api/conversations/%s/live", conv.ID),
	}, nil
}

// authorizeSend applies the send rules: the owning user, or the owning guest session under the cap
func (s *Service) authorizeSend(ctx context.Context, conversationID string, caller models.Caller) (*models.Conversation, error) {
	switch {
	case caller.IsAuthenticated():
		conv, err := s.conversations.Get(ctx, conversationID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if conv == nil || !conv.OwnedByUser(caller.UserID) {
			return nil, domain.Forbidden("Not authorised to send messages to this conversation")
		}
		return conv, nil

	case caller.SessionID != "":
		conv, err := s.conversations.Get(ctx, conversationID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if conv == nil || !conv.OwnedBySession(caller.SessionID) {
			return nil, domain.Forbidden("Not authorised for this guest session.")
		}
		// Fail fast; the authoritative check runs again inside the insert transaction
		if err := s.checkGuestCap(ctx, conv.ID); err != nil {
			return nil, err
		}
		return conv, nil

	default:
		return nil, domain.Unauthorized("Authentication or session ID is required.")
	}
}

// checkGuestCap rejects a guest send once the conversation holds the maximum user messages
func (s *Service) checkGuestCap(ctx context.Context, conversationID string) error {
	count, err := s.messages.CountByRole(ctx, conversationID, models.RoleUser)
	if err != nil {
		return fmt.Errorf("count guest messages: %w", err)
	}
	if count >= config.GuestMessageLimit {
		return domain.RateLimited("Guest message limit reached. Please log in to continue.")
	}
	return nil
}

// resolveAttachments loads the caller's attachments and signs a read URL for each
func (s *Service) resolveAttachments(ctx context.Context, refs []models.AttachmentRef, caller models.Caller) ([]models.AttachmentWithURL, error) {
	out := make([]models.AttachmentWithURL, 0, len(refs))
	for _, ref := range refs {
		a, err := s.attachments.Get(ctx, ref.AttachmentID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if a == nil || !caller.IsAuthenticated() || a.UserID != caller.UserID {
			return nil, domain.NotFound("Attachment not found or not owned by user: " + ref.FileName)
		}

		url, err := s.blobs.ReadURL(ctx, a.StorageID, config.ReadURLTTL)
		if err != nil || url == "" {
			s.logger.Error("failed to sign attachment url", "attachment_id", a.ID, "error", err)
			return nil, fmt.Errorf("Could not get URL for attachment: %s", ref.FileName)
		}
		out = append(out, models.AttachmentWithURL{Attachment: *a, URL: url})
	}
	return out, nil
}

// List returns the conversation's messages when the caller may read it, otherwise none
func (s *Service) List(ctx context.Context, conversationID string, caller models.Caller) ([]models.Message, error) {
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []models.Message{}, nil
		}
		return nil, err
	}
	if !conv.ReadableBy(caller) {
		return []models.Message{}, nil
	}
	return s.messages.ListByConversation(ctx, conv.ID)
}

// DeleteTrailing removes messages from a point in time onward (used before a rerun)
func (s *Service) DeleteTrailing(ctx context.Context, req *chatSvc.DeleteTrailingRequest) error {
	if !req.Caller.IsAuthenticated() {
		return domain.Unauthorized("Must be authenticated to delete messages")
	}
	if err := validation.ValidateStruct(req,
		validation.Field(&req.ConversationID, validation.Required),
		validation.Field(&req.FromCreatedAt, validation.Required, validation.Min(int64(0))),
	); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	conv, err := s.conversations.Get(ctx, req.ConversationID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if conv == nil || !conv.OwnedByUser(req.Caller.UserID) {
		return domain.Forbidden("Not authorised to delete messages from this conversation")
	}

	inclusive := true
	if req.Inclusive != nil {
		inclusive = *req.Inclusive
	}

	n, err := s.messages.DeleteFrom(ctx, conv.ID, time.UnixMilli(req.FromCreatedAt).UTC(), inclusive)
	if err != nil {
		return err
	}
	s.logger.Info("trailing messages deleted",
		"conversation_id", conv.ID,
		"from", req.FromCreatedAt,
		"inclusive", inclusive,
		"deleted", n,
	)
	return nil
}

// Cancel stops an in-flight reply. The orchestrator seals whatever text was streamed so far.
func (s *Service) Cancel(ctx context.Context, messageID string, caller models.Caller) error {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return err
	}
	conv, err := s.conversations.Get(ctx, msg.ConversationID)
	if err != nil {
		return err
	}
	if !s.ownedBy(conv, caller) {
		return domain.Forbidden("Not authorised to cancel this message")
	}
	if msg.IsComplete || !s.turns.Cancel(messageID) {
		return domain.NotFound("Message is not currently streaming")
	}

	s.logger.Info("turn cancel requested",
		"conversation_id", conv.ID,
		"message_id", messageID,
	)
	return nil
}

// GenerateTitle schedules title or summary generation for a message
func (s *Service) GenerateTitle(ctx context.Context, req *chatSvc.GenerateTitleRequest) error {
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Prompt, validation.Required),
		validation.Field(&req.MessageID, validation.Required),
		validation.Field(&req.ConversationID, validation.Required),
	); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	conv, err := s.conversations.Get(ctx, req.ConversationID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if conv == nil || !s.ownedBy(conv, req.Caller) {
		return domain.Forbidden("Not authorised to modify this conversation")
	}

	return s.jobs.ScheduleTitle(ctx, &chatSvc.TitleJob{
		Prompt:         req.Prompt,
		IsTitle:        req.IsTitle,
		MessageID:      req.MessageID,
		ConversationID: conv.ID,
		UserGoogleKey:  req.UserGoogleKey,
	})
}

// ownedBy reports whether caller owns conv as its user, or as its guest session when unauthenticated
func (s *Service) ownedBy(conv *models.Conversation, caller models.Caller) bool {
	if caller.IsAuthenticated() {
		return conv.OwnedByUser(caller.UserID)
	}
	return conv.OwnedBySession(caller.SessionID)
}

// Validation methods

func (s *Service) validateSendTurnRequest(req *chatSvc.SendTurnRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.ConversationID, validation.Required),
		validation.Field(&req.Model, validation.Required),
		validation.Field(&req.Content,
			validation.Length(0, config.MaxMessageContentLength),
			validation.When(len(req.AttachmentRefs) == 0, validation.Required.Error("content or an attachment is required")),
		),
		validation.Field(&req.AttachmentRefs, validation.Each(validation.By(validateAttachmentRef))),
	)
}

func validateAttachmentRef(value interface{}) error {
	ref, ok := value.(models.AttachmentRef)
	if !ok {
		return fmt.Errorf("invalid attachment reference")
	}
	if ref.AttachmentID == "" {
		return fmt.Errorf("attachment_id is required")
	}
	return nil
}

var _ chatSvc.MessageService = (*Service)(nil)
