package chat

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

// ConversationService implements chatSvc.ConversationService
type ConversationService struct {
	conversations chatRepo.ConversationRepository
	messages      chatRepo.MessageRepository
	txManager     repositories.TransactionManager
	logger        *slog.Logger
	now           func() time.Time
}

// NewConversationService creates a new conversation service
func NewConversationService(
	conversations chatRepo.ConversationRepository,
	messages chatRepo.MessageRepository,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		txManager:     txManager,
		logger:        logger,
		now:           time.Now,
	}
}

var _ chatSvc.ConversationService = (*ConversationService)(nil)

// Create returns the caller's conversation with req.UUID, creating it on first use
func (s *ConversationService) Create(ctx context.Context, req *chatSvc.CreateConversationRequest) (*models.Conversation, error) {
	if err := validation.ValidateStruct(req,
		validation.Field(&req.UUID, validation.Required, validation.Length(1, 64)),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	caller := req.Caller
	if !caller.IsAuthenticated() && caller.SessionID == "" {
		return nil, domain.Unauthorized("Authentication or session ID is required.")
	}

	// Authenticated callers own by user id; the session only applies to guests
	userID, sessionID := caller.UserID, ""
	if !caller.IsAuthenticated() {
		sessionID = caller.SessionID
	}

	existing, err := s.conversations.FindForOwner(ctx, req.UUID, userID, sessionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.now().UTC()
	conv := &models.Conversation{
		UUID:          req.UUID,
		Title:         models.DefaultConversationTitle,
		CreatedAt:     now,
		UpdatedAt:     now,
		LastMessageAt: now,
	}
	if userID != "" {
		conv.UserID = &userID
	} else {
		conv.SessionID = &sessionID
	}

	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, err
	}

	s.logger.Info("conversation created",
		"id", conv.ID,
		"uuid", conv.UUID,
		"guest", !caller.IsAuthenticated(),
	)
	return conv, nil
}

// Get returns a conversation the caller may read
func (s *ConversationService) Get(ctx context.Context, id string, caller models.Caller) (*models.Conversation, error) {
	conv, err := s.conversations.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.ReadableBy(caller) {
		return nil, domain.NotFound("Conversation not found")
	}
	return conv, nil
}

// GetByUUID returns a conversation by its external UUID if the caller may read it
func (s *ConversationService) GetByUUID(ctx context.Context, uuid string, caller models.Caller) (*models.Conversation, error) {
	conv, err := s.conversations.GetByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if !conv.ReadableBy(caller) {
		return nil, domain.NotFound("Conversation not found")
	}
	return conv, nil
}

// List returns the caller's conversations, most recently active first. Guests get none.
func (s *ConversationService) List(ctx context.Context, caller models.Caller) ([]models.Conversation, error) {
	if !caller.IsAuthenticated() {
		return []models.Conversation{}, nil
	}
	return s.conversations.ListByUser(ctx, caller.UserID)
}

// ListWithLastMessage is List plus each conversation's newest message
func (s *ConversationService) ListWithLastMessage(ctx context.Context, caller models.Caller) ([]models.ConversationWithLastMessage, error) {
	convs, err := s.List(ctx, caller)
	if err != nil {
		return nil, err
	}

	out := make([]models.ConversationWithLastMessage, 0, len(convs))
	for _, c := range convs {
		item := models.ConversationWithLastMessage{Conversation: c}
		last, err := s.messages.Last(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("last message for %s: %w", c.ID, err)
		}
		if last != nil {
			item.LastMessage = &models.LastMessagePreview{
				Role:       last.Role,
				Content:    last.Content,
				CreatedAt:  last.CreatedAt,
				IsComplete: last.IsComplete,
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// Update changes the title of a conversation the caller owns
func (s *ConversationService) Update(ctx context.Context, id string, req *chatSvc.UpdateConversationRequest, caller models.Caller) (*models.Conversation, error) {
	if !caller.IsAuthenticated() {
		return nil, domain.Unauthorized("Must be authenticated to update conversations")
	}
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Title, validation.NilOrNotEmpty, validation.Length(1, config.MaxConversationTitleLength)),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	conv, err := s.ownedConversation(ctx, id, caller, "Not authorised to update this conversation")
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	title := conv.Title
	if req.Title != nil {
		title = strings.TrimSpace(*req.Title)
	}
	if err := s.conversations.UpdateTitle(ctx, conv.ID, title, now); err != nil {
		return nil, err
	}
	conv.Title = title
	conv.UpdatedAt = now

	s.logger.Info("conversation updated", "id", conv.ID, "user_id", caller.UserID)
	return conv, nil
}

// Remove deletes a conversation the caller owns, with its messages and summaries
func (s *ConversationService) Remove(ctx context.Context, id string, caller models.Caller) error {
	if !caller.IsAuthenticated() {
		return domain.Unauthorized("Must be authenticated to delete conversations")
	}
	conv, err := s.ownedConversation(ctx, id, caller, "Not authorised to delete this conversation")
	if err != nil {
		return err
	}
	if err := s.conversations.Delete(ctx, conv.ID); err != nil {
		return err
	}
	s.logger.Info("conversation deleted", "id", conv.ID, "user_id", caller.UserID)
	return nil
}

// Branch copies a conversation's messages up to and including the branch point
// into a new conversation and returns the new conversation's UUID
func (s *ConversationService) Branch(ctx context.Context, req *chatSvc.BranchRequest) (string, error) {
	if !req.Caller.IsAuthenticated() {
		return "", domain.Unauthorized("Must be authenticated to branch conversations")
	}
	if err := validation.ValidateStruct(req,
		validation.Field(&req.ConversationID, validation.Required),
		validation.Field(&req.BranchPointMessageID, validation.Required),
	); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	original, err := s.ownedConversation(ctx, req.ConversationID, req.Caller, "Not authorised to branch this conversation")
	if err != nil {
		return "", err
	}

	point, err := s.messages.Get(ctx, req.BranchPointMessageID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	if point == nil || point.ConversationID != original.ID {
		return "", domain.NotFound("Branch point message not found in the original conversation.")
	}

	all, err := s.messages.ListByConversation(ctx, original.ID)
	if err != nil {
		return "", fmt.Errorf("load messages: %w", err)
	}
	toCopy := make([]models.Message, 0, len(all))
	for _, m := range all {
		toCopy = append(toCopy, m)
		if m.ID == point.ID {
			break
		}
	}

	now := s.now().UTC()
	userID := req.Caller.UserID
	originalTitle := original.Title
	branched := &models.Conversation{
		UUID:              uuid.NewString(),
		Title:             original.Title + " (branched)",
		UserID:            &userID,
		CreatedAt:         now,
		UpdatedAt:         now,
		LastMessageAt:     now,
		IsBranched:        true,
		BranchedFrom:      &original.ID,
		BranchedFromTitle: &originalTitle,
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.conversations.Create(txCtx, branched); err != nil {
			return fmt.Errorf("create branch: %w", err)
		}
		for _, m := range toCopy {
			cp := m
			cp.ID = uuid.NewString()
			cp.ConversationID = branched.ID
			cp.Parts = m.Parts.Clone()
			// The copy has no writer; an in-flight reply is sealed as-is
			cp.IsComplete = true
			cp.Reasoning = nil
			if err := s.messages.Create(txCtx, &cp); err != nil {
				return fmt.Errorf("copy message %s: %w", m.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("conversation branched",
		"original_id", original.ID,
		"branch_id", branched.ID,
		"messages", len(toCopy),
	)
	return branched.UUID, nil
}

// TogglePublic flips public visibility and returns the new value
func (s *ConversationService) TogglePublic(ctx context.Context, id string, caller models.Caller) (bool, error) {
	if !caller.IsAuthenticated() {
		return false, domain.Unauthorized("Must be authenticated to toggle conversation visibility")
	}
	conv, err := s.ownedConversation(ctx, id, caller, "Not authorised to modify this conversation")
	if err != nil {
		return false, err
	}
	isPublic := !conv.IsPublic
	if err := s.conversations.SetPublic(ctx, conv.ID, isPublic); err != nil {
		return false, err
	}
	return isPublic, nil
}

// ClearGuestData deletes every conversation of a guest session
func (s *ConversationService) ClearGuestData(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return domain.Invalid("Session ID is required")
	}
	n, err := s.conversations.DeleteBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	s.logger.Info("guest data cleared", "conversations", n)
	return nil
}

// UpdateTitle sets a generated title without an access check
func (s *ConversationService) UpdateTitle(ctx context.Context, id, title string) error {
	if len(title) > config.MaxConversationTitleLength {
		title = title[:config.MaxConversationTitleLength]
	}
	return s.conversations.UpdateTitle(ctx, id, title, s.now().UTC())
}

// ownedConversation loads id and requires the caller to be its authenticated owner
func (s *ConversationService) ownedConversation(ctx context.Context, id string, caller models.Caller, forbidden string) (*models.Conversation, error) {
	conv, err := s.conversations.Get(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if conv == nil || !conv.OwnedByUser(caller.UserID) {
		return nil, domain.Forbidden(forbidden)
	}
	return conv, nil
}
