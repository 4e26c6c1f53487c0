package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"chatstream/internal/auth"
	models "chatstream/internal/domain/models/chat"
	"chatstream/internal/httputil"
)

// SessionHeader carries the client-held guest session id
const SessionHeader = "X-Session-ID"

// maxSessionIDLen bounds the guest session header
const maxSessionIDLen = 128

// OptionalAuth resolves the caller identity for every request.
//
// A request without a bearer token proceeds as a guest (X-Session-ID, possibly
// empty). A bearer token that fails verification is rejected with 401 rather
// than downgraded to a guest. verifier may be nil when auth is not configured,
// in which case any bearer token is rejected.
func OptionalAuth(verifier auth.JWTVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := models.Caller{
				SessionID: strings.TrimSpace(r.Header.Get(SessionHeader)),
			}
			if len(caller.SessionID) > maxSessionIDLen {
				httputil.RespondError(w, http.StatusBadRequest, "session id is too long")
				return
			}

			if header := r.Header.Get("Authorization"); header != "" {
				token, ok := strings.CutPrefix(header, "Bearer ")
				if !ok || strings.TrimSpace(token) == "" {
					httputil.RespondError(w, http.StatusUnauthorized, "invalid authorization header")
					return
				}
				if verifier == nil {
					httputil.RespondError(w, http.StatusUnauthorized, "authentication is not configured")
					return
				}

				claims, err := verifier.VerifyToken(strings.TrimSpace(token))
				if err != nil {
					logger.Debug("bearer token rejected",
						"path", r.URL.Path,
						"error", err,
					)
					httputil.RespondError(w, http.StatusUnauthorized, "invalid or expired token")
					return
				}
				caller.UserID = claims.GetUserID()
			}

			next.ServeHTTP(w, httputil.WithCaller(r, caller))
		})
	}
}
