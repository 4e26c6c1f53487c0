package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"chatstream/internal/config"
	"chatstream/internal/domain"
	models "chatstream/internal/domain/models/chat"
	chatRepo "chatstream/internal/domain/repositories/chat"
	chatSvc "chatstream/internal/domain/services/chat"
)

// AttachmentService implements chatSvc.AttachmentService.
// Attachments belong to authenticated users only.
type AttachmentService struct {
	attachments   chatRepo.AttachmentRepository
	conversations chatRepo.ConversationRepository
	blobs         chatSvc.BlobStore
	logger        *slog.Logger
	now           func() time.Time
}

// NewAttachmentService creates a new attachment service
func NewAttachmentService(
	attachments chatRepo.AttachmentRepository,
	conversations chatRepo.ConversationRepository,
	blobs chatSvc.BlobStore,
	logger *slog.Logger,
) *AttachmentService {
	return &AttachmentService{
		attachments:   attachments,
		conversations: conversations,
		blobs:         blobs,
		logger:        logger,
		now:           time.Now,
	}
}

var _ chatSvc.AttachmentService = (*AttachmentService)(nil)

// GenerateUploadURL reserves a storage id and signs a one-shot upload URL for it
func (s *AttachmentService) GenerateUploadURL(ctx context.Context, caller models.Caller) (*chatSvc.UploadURLResponse, error) {
	if !caller.IsAuthenticated() {
		return nil, domain.Unauthorized("You must be logged in to upload a file.")
	}
	storageID := uuid.NewString()
	url, expiresAt, err := s.blobs.UploadURL(ctx, storageID, config.UploadURLTTL)
	if err != nil {
		return nil, fmt.Errorf("sign upload url: %w", err)
	}
	return &chatSvc.UploadURLResponse{
		StorageID: storageID,
		UploadURL: url,
		ExpiresAt: expiresAt.UnixMilli(),
	}, nil
}

// Save records metadata for a blob the caller uploaded
func (s *AttachmentService) Save(ctx context.Context, req *chatSvc.SaveAttachmentRequest) (*models.Attachment, error) {
	if !req.Caller.IsAuthenticated() {
		return nil, domain.Unauthorized("Not authenticated")
	}
	if err := validation.ValidateStruct(req,
		validation.Field(&req.StorageID, validation.Required),
		validation.Field(&req.FileName, validation.Required, validation.Length(1, config.MaxFileNameLength)),
		validation.Field(&req.ContentType, validation.Required),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if req.ConversationID != nil {
		conv, err := s.conversations.Get(ctx, *req.ConversationID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if conv == nil || !conv.OwnedByUser(req.Caller.UserID) {
			return nil, domain.Forbidden("Not authorised to attach files to this conversation")
		}
	}

	a := &models.Attachment{
		ID:             uuid.NewString(),
		UserID:         req.Caller.UserID,
		StorageID:      req.StorageID,
		FileName:       req.FileName,
		ContentType:    req.ContentType,
		CreatedAt:      s.now().UTC(),
		ConversationID: req.ConversationID,
	}
	if err := s.attachments.Create(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("attachment saved",
		"id", a.ID,
		"content_type", a.ContentType,
		"user_id", a.UserID,
	)
	return a, nil
}

// Get returns one of the caller's attachments with a read URL
func (s *AttachmentService) Get(ctx context.Context, id string, caller models.Caller) (*models.AttachmentWithURL, error) {
	a, err := s.owned(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, domain.NotFound("Attachment not found")
	}
	out := s.withURL(ctx, *a)
	return &out, nil
}

// ListForConversation returns attachments linked to a conversation the caller owns
func (s *AttachmentService) ListForConversation(ctx context.Context, conversationID string, caller models.Caller) ([]models.AttachmentWithURL, error) {
	if !caller.IsAuthenticated() {
		return []models.AttachmentWithURL{}, nil
	}
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if conv == nil || !conv.OwnedByUser(caller.UserID) {
		return []models.AttachmentWithURL{}, nil
	}
	list, err := s.attachments.ListByConversation(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	return s.withURLs(ctx, list), nil
}

// ListForUser returns all of the caller's attachments
func (s *AttachmentService) ListForUser(ctx context.Context, caller models.Caller) ([]models.AttachmentWithURL, error) {
	if !caller.IsAuthenticated() {
		return []models.AttachmentWithURL{}, nil
	}
	list, err := s.attachments.ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	return s.withURLs(ctx, list), nil
}

// Delete removes the blob and then the metadata row
func (s *AttachmentService) Delete(ctx context.Context, id string, caller models.Caller) error {
	if !caller.IsAuthenticated() {
		return domain.Unauthorized("Not authenticated")
	}
	a, err := s.attachments.Get(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if a == nil {
		return domain.NotFound("Attachment not found")
	}
	if a.UserID != caller.UserID {
		return domain.Forbidden("Not authorised to delete this attachment")
	}

	if err := s.blobs.Delete(ctx, a.StorageID); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	if err := s.attachments.Delete(ctx, a.ID); err != nil {
		return err
	}
	s.logger.Info("attachment deleted", "id", a.ID, "user_id", caller.UserID)
	return nil
}

// UpdateTokenCount sets the same prompt-token estimate on each attachment
func (s *AttachmentService) UpdateTokenCount(ctx context.Context, ids []string, promptTokens int) error {
	if len(ids) == 0 {
		return nil
	}
	return s.attachments.SetPromptTokens(ctx, ids, promptTokens)
}

func (s *AttachmentService) owned(ctx context.Context, id string, caller models.Caller) (*models.Attachment, error) {
	if !caller.IsAuthenticated() {
		return nil, nil
	}
	a, err := s.attachments.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if a.UserID != caller.UserID {
		return nil, nil
	}
	return a, nil
}

func (s *AttachmentService) withURLs(ctx context.Context, list []models.Attachment) []models.AttachmentWithURL {
	out := make([]models.AttachmentWithURL, 0, len(list))
	for _, a := range list {
		out = append(out, s.withURL(ctx, a))
	}
	return out
}

// withURL signs a read URL; a signing failure leaves URL empty rather than failing the listing
func (s *AttachmentService) withURL(ctx context.Context, a models.Attachment) models.AttachmentWithURL {
	url, err := s.blobs.ReadURL(ctx, a.StorageID, config.ReadURLTTL)
	if err != nil {
		s.logger.Warn("failed to sign attachment url", "attachment_id", a.ID, "error", err)
	}
	return models.AttachmentWithURL{Attachment: a, URL: url}
}
