package handler

import (
	"log/slog"
	"net/http"

	chatSvc "chatstream/internal/domain/services/chat"
	"chatstream/internal/httputil"
)

// APIKeyHandler manages a user's stored provider keys
type APIKeyHandler struct {
	keys   chatSvc.APIKeyService
	logger *slog.Logger
}

// NewAPIKeyHandler creates a new API key handler
func NewAPIKeyHandler(keys chatSvc.APIKeyService, logger *slog.Logger) *APIKeyHandler {
	return &APIKeyHandler{
		keys:   keys,
		logger: logger,
	}
}

type putAPIKeyRequest struct {
	Provider string `json:"provider"`
	Key      string `json:"key"`
}

// ListKeys returns masked hints for the caller's stored keys
// GET /api/keys
func (h *APIKeyHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.List(r.Context(), httputil.GetCaller(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, keys)
}

// PutKey stores or replaces a key; the plaintext is never echoed back
// PUT /api/keys
func (h *APIKeyHandler) PutKey(w http.ResponseWriter, r *http.Request) {
	var req putAPIKeyRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	stored, err := h.keys.Put(r.Context(), req.Provider, req.Key, httputil.GetCaller(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, stored)
}

// DeleteKey removes the caller's key for a provider
// DELETE /api/keys/{provider}
func (h *APIKeyHandler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	provider, ok := PathParam(w, r, "provider", "Provider")
	if !ok {
		return
	}

	if err := h.keys.Delete(r.Context(), provider, httputil.GetCaller(r)); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
