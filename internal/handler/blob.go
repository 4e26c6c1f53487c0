package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"chatstream/internal/blobstore"
	"chatstream/internal/config"
	"chatstream/internal/httputil"
)

// BlobHandler serves the signed upload and read URLs issued by the blob store
type BlobHandler struct {
	blobs  *blobstore.LocalStore
	logger *slog.Logger
}

func NewBlobHandler(blobs *blobstore.LocalStore, logger *slog.Logger) *BlobHandler {
	return &BlobHandler{
		blobs:  blobs,
		logger: logger,
	}
}

// authorize checks the URL token; on failure the response is already written
func (h *BlobHandler) authorize(w http.ResponseWriter, r *http.Request, op string) (string, bool) {
	id, ok := PathParam(w, r, "storageId", "Storage ID")
	if !ok {
		return "", false
	}
	if err := h.blobs.Verify(r.URL.Query().Get("token"), id, op); err != nil {
		httputil.RespondError(w, http.StatusForbidden, "Invalid or expired blob URL")
		return "", false
	}
	return id, true
}

// Upload stores the request body as the blob
// PUT /api/blobs/{storageId}?token=...
func (h *BlobHandler) Upload(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, blobstore.OpPut)
	if !ok {
		return
	}

	body := http.MaxBytesReader(w, r.Body, config.MaxUploadBytes)
	n, err := h.blobs.Write(id, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.RespondError(w, http.StatusRequestEntityTooLarge, "Upload exceeds the size limit")
			return
		}
		handleError(w, err)
		return
	}

	h.logger.Debug("blob uploaded", "storage_id", id, "bytes", n)
	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"storage_id": id,
		"size":       n,
	})
}

// Download streams the blob; range and conditional requests are honoured
// GET /api/blobs/{storageId}?token=...
func (h *BlobHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, blobstore.OpGet)
	if !ok {
		return
	}

	f, err := h.blobs.Open(id)
	if err != nil {
		handleError(w, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		handleError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	http.ServeContent(w, r, "", info.ModTime(), f)
}
