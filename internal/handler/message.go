package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	chatSvc "chatstream/internal/domain/services/chat"
	"chatstream/internal/httputil"
)

// MessageHandler handles message and turn HTTP requests
type MessageHandler struct {
	messages  chatSvc.MessageService
	summaries chatSvc.SummaryService
	logger    *slog.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messages chatSvc.MessageService, summaries chatSvc.SummaryService, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{
		messages:  messages,
		summaries: summaries,
		logger:    logger,
	}
}

// ListMessages returns a conversation's messages in order
// GET /api/conversations/{id}/messages
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	msgs, err := h.messages.List(r.Context(), id, httputil.GetCaller(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, msgs)
}

// SendTurn persists the user message and placeholder, then streams the reply in the background.
// The response carries both messages and the live URL to observe.
// POST /api/conversations/{id}/messages
func (h *MessageHandler) SendTurn(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	var req chatSvc.SendTurnRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.ConversationID = id
	req.Caller = httputil.GetCaller(r)

	resp, err := h.messages.SendTurn(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	h.logger.Debug("turn accepted",
		"conversation_id", id,
		"assistant_message_id", resp.AssistantMessage.ID,
	)
	httputil.RespondJSON(w, http.StatusCreated, resp)
}

// DeleteTrailing removes messages from a point in time onward
// DELETE /api/conversations/{id}/messages?from_created_at=<unix ms>&inclusive=<bool>
func (h *MessageHandler) DeleteTrailing(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	q := r.URL.Query()
	from, err := strconv.ParseInt(q.Get("from_created_at"), 10, 64)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "from_created_at must be a unix millisecond timestamp")
		return
	}
	req := chatSvc.DeleteTrailingRequest{
		ConversationID: id,
		FromCreatedAt:  from,
		Caller:         httputil.GetCaller(r),
	}
	if raw := q.Get("inclusive"); raw != "" {
		inclusive, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "inclusive must be true or false")
			return
		}
		req.Inclusive = &inclusive
	}

	if err := h.messages.DeleteTrailing(r.Context(), &req); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CancelMessage stops an in-flight reply; the text streamed so far is kept
// POST /api/messages/{id}/cancel
func (h *MessageHandler) CancelMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Message ID")
	if !ok {
		return
	}

	if err := h.messages.Cancel(r.Context(), id, httputil.GetCaller(r)); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// GenerateTitle schedules title or summary generation for a message
// POST /api/messages/{id}/title
func (h *MessageHandler) GenerateTitle(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Message ID")
	if !ok {
		return
	}

	var req chatSvc.GenerateTitleRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.MessageID = id
	req.Caller = httputil.GetCaller(r)

	if err := h.messages.GenerateTitle(r.Context(), &req); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// GetSummary returns the summaries generated for a message
// GET /api/messages/{id}/summary
func (h *MessageHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Message ID")
	if !ok {
		return
	}

	summaries, err := h.summaries.GetByMessage(r.Context(), id, httputil.GetCaller(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, summaries)
}
