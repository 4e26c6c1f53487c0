package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	models "chatstream/internal/domain/models/chat"
	chatSvc "chatstream/internal/domain/services/chat"
	"chatstream/internal/handler/sse"
	"chatstream/internal/httputil"
)

// LiveHandler pushes conversation snapshots to observers over SSE.
// Every event carries the full message list, so a client that drops and
// reconnects only needs the next event to be consistent again.
type LiveHandler struct {
	messages chatSvc.MessageService
	notifier chatSvc.ChangeNotifier
	interval time.Duration
	logger   *slog.Logger
}

// NewLiveHandler creates a live conversation handler. keepAlive of zero
// selects sse.DefaultKeepAliveInterval.
func NewLiveHandler(messages chatSvc.MessageService, notifier chatSvc.ChangeNotifier, keepAlive time.Duration, logger *slog.Logger) *LiveHandler {
	return &LiveHandler{
		messages: messages,
		notifier: notifier,
		interval: keepAlive,
		logger:   logger,
	}
}

// StreamConversation sends a "messages" event now and again after every change
// GET /api/conversations/{id}/live
func (h *LiveHandler) StreamConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}
	ctx := r.Context()
	caller := httputil.GetCaller(r)

	// Subscribe before the first read so no change falls between the two
	changes, cancel, err := h.notifier.Subscribe(ctx, id)
	if err != nil {
		handleError(w, err)
		return
	}
	defer cancel()

	msgs, err := h.messages.List(ctx, id, caller)
	if err != nil {
		handleError(w, err)
		return
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	logger := h.logger.With("conversation_id", id)
	if err := h.send(writer, msgs); err != nil {
		logger.Debug("initial snapshot write failed", "error", err)
		return
	}

	keepAlive := sse.NewTickerKeepAlive(h.interval)
	stopped := keepAlive.Start(writer, logger)
	defer keepAlive.Stop()

	logger.Debug("live observer connected")
	for {
		select {
		case <-ctx.Done():
			logger.Debug("live observer disconnected")
			return
		case <-stopped:
			return
		case _, open := <-changes:
			if !open {
				return
			}
			drain(changes)
			if err := h.refresh(ctx, writer, id, caller); err != nil {
				logger.Debug("live snapshot failed", "error", err)
				return
			}
		}
	}
}

func (h *LiveHandler) refresh(ctx context.Context, writer *sse.Writer, id string, caller models.Caller) error {
	msgs, err := h.messages.List(ctx, id, caller)
	if err != nil {
		return err
	}
	return h.send(writer, msgs)
}

func (h *LiveHandler) send(writer *sse.Writer, msgs []models.Message) error {
	data, err := json.Marshal(msgs)
	if err != nil {
		return err
	}
	return writer.WriteEvent("messages", data)
}

// drain discards changes already queued; one snapshot covers them all
func drain(changes <-chan chatSvc.MessageChange) {
	for {
		select {
		case _, open := <-changes:
			if !open {
				return
			}
		default:
			return
		}
	}
}
