package handler

import (
	"log/slog"
	"net/http"

	chatSvc "chatstream/internal/domain/services/chat"
	"chatstream/internal/httputil"
)

// ConversationHandler handles conversation HTTP requests
type ConversationHandler struct {
	conversations chatSvc.ConversationService
	summaries     chatSvc.SummaryService
	attachments   chatSvc.AttachmentService
	logger        *slog.Logger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(
	conversations chatSvc.ConversationService,
	summaries chatSvc.SummaryService,
	attachments chatSvc.AttachmentService,
	logger *slog.Logger,
) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		summaries:     summaries,
		attachments:   attachments,
		logger:        logger,
	}
}

// CreateConversation returns the caller's conversation for a client uuid, creating it on first use
// POST /api/conversations
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req chatSvc.CreateConversationRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Caller = httputil.GetCaller(r)

	conv, err := h.conversations.Create(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, conv)
}

// ListConversations lists the caller's conversations
// GET /api/conversations
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := h.conversations.List(r.Context(), httputil.GetCaller(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, convs)
}

// ListWithLastMessage lists conversations with each one's newest message
// GET /api/conversations/with-last-message
func (h *ConversationHandler) ListWithLastMessage(w http.ResponseWriter, r *http.Request) {
	convs, err := h.conversations.ListWithLastMessage(r.Context(), httputil.GetCaller(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, convs)
}

// GetConversation retrieves a conversation by ID
// GET /api/conversations/{id}
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	conv, err := h.conversations.Get(r.Context(), id, httputil.GetCaller(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, conv)
}

// GetByUUID retrieves a conversation by its external uuid
// GET /api/conversations/by-uuid/{uuid}
func (h *ConversationHandler) GetByUUID(w http.ResponseWriter, r *http.Request) {
	uuid, ok := PathParam(w, r, "uuid", "Conversation UUID")
	if !ok {
		return
	}

	conv, err := h.conversations.GetByUUID(r.Context(), uuid, httputil.GetCaller(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, conv)
}

// UpdateConversation changes the title
// PATCH /api/conversations/{id}
func (h *ConversationHandler) UpdateConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	var body struct {
		Title httputil.OptionalString `json:"title"`
	}
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Title.IsNull() {
		httputil.RespondError(w, http.StatusBadRequest, "title cannot be null")
		return
	}

	conv, err := h.conversations.Update(r.Context(), id,
		&chatSvc.UpdateConversationRequest{Title: body.Title.Value},
		httputil.GetCaller(r),
	)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, conv)
}

// DeleteConversation removes a conversation with its messages and summaries
// DELETE /api/conversations/{id}
func (h *ConversationHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	if err := h.conversations.Remove(r.Context(), id, httputil.GetCaller(r)); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BranchConversation copies a conversation up to a message
// POST /api/conversations/{id}/branch
func (h *ConversationHandler) BranchConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	var req chatSvc.BranchRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.ConversationID = id
	req.Caller = httputil.GetCaller(r)

	newUUID, err := h.conversations.Branch(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, map[string]string{"uuid": newUUID})
}

// TogglePublic flips public visibility
// POST /api/conversations/{id}/public
func (h *ConversationHandler) TogglePublic(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	isPublic, err := h.conversations.TogglePublic(r.Context(), id, httputil.GetCaller(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]bool{"is_public": isPublic})
}

// ClearGuestData deletes every conversation of the caller's guest session
// DELETE /api/guest-data
func (h *ConversationHandler) ClearGuestData(w http.ResponseWriter, r *http.Request) {
	caller := httputil.GetCaller(r)
	if err := h.conversations.ClearGuestData(r.Context(), caller.SessionID); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSummaries returns a conversation's generated summaries
// GET /api/conversations/{id}/summaries
func (h *ConversationHandler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	summaries, err := h.summaries.ListByConversation(r.Context(), id, httputil.GetCaller(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, summaries)
}

// ListAttachments returns attachments linked to a conversation
// GET /api/conversations/{id}/attachments
func (h *ConversationHandler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	items, err := h.attachments.ListForConversation(r.Context(), id, httputil.GetCaller(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, items)
}
