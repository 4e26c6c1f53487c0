package handler

import (
	"log/slog"
	"net/http"

	chatSvc "chatstream/internal/domain/services/chat"
	"chatstream/internal/httputil"
)

// AttachmentHandler handles attachment HTTP requests
type AttachmentHandler struct {
	attachments chatSvc.AttachmentService
	logger      *slog.Logger
}

// NewAttachmentHandler creates a new attachment handler
func NewAttachmentHandler(attachments chatSvc.AttachmentService, logger *slog.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		attachments: attachments,
		logger:      logger,
	}
}

// GenerateUploadURL returns a signed upload target for a new blob
// POST /api/attachments/upload-url
func (h *AttachmentHandler) GenerateUploadURL(w http.ResponseWriter, r *http.Request) {
	resp, err := h.attachments.GenerateUploadURL(r.Context(), httputil.GetCaller(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// SaveAttachment records metadata for an uploaded blob
// POST /api/attachments
func (h *AttachmentHandler) SaveAttachment(w http.ResponseWriter, r *http.Request) {
	var req chatSvc.SaveAttachmentRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Caller = httputil.GetCaller(r)

	attachment, err := h.attachments.Save(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, attachment)
}

// ListAttachments returns the caller's attachments, newest first
// GET /api/attachments
func (h *AttachmentHandler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	items, err := h.attachments.ListForUser(r.Context(), httputil.GetCaller(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, items)
}

// GetAttachment returns one attachment with a fresh read URL
// GET /api/attachments/{id}
func (h *AttachmentHandler) GetAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Attachment ID")
	if !ok {
		return
	}

	attachment, err := h.attachments.Get(r.Context(), id, httputil.GetCaller(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, attachment)
}

// DeleteAttachment removes the attachment and its blob
// DELETE /api/attachments/{id}
func (h *AttachmentHandler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Attachment ID")
	if !ok {
		return
	}

	if err := h.attachments.Delete(r.Context(), id, httputil.GetCaller(r)); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
