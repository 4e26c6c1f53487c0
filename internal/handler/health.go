package handler

import (
	"context"
	"net/http"
	"time"

	"chatstream/internal/httputil"
)

// Pinger is satisfied by *pgxpool.Pool
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthCheck reports whether the database answers
// GET /health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		httputil.RespondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
