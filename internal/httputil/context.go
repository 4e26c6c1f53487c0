package httputil

import (
	"context"
	"net/http"

	models "chatstream/internal/domain/models/chat"
)

// Context key type to avoid collisions
type contextKey string

const (
	callerKey contextKey = "caller"
)

// WithCaller adds the resolved caller identity to the request context
func WithCaller(r *http.Request, caller models.Caller) *http.Request {
	ctx := context.WithValue(r.Context(), callerKey, caller)
	return r.WithContext(ctx)
}

// GetCaller retrieves the caller from context. Requests that skipped the auth
// middleware get the zero Caller, which is neither a user nor a guest.
func GetCaller(r *http.Request) models.Caller {
	caller, _ := r.Context().Value(callerKey).(models.Caller)
	return caller
}
