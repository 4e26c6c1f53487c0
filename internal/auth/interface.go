package auth

import "chatstream/internal/domain/models"

// JWTVerifier validates bearer tokens.
// Middleware depends on this interface so tests can swap the JWKS-backed implementation.
type JWTVerifier interface {
	// VerifyToken returns the claims of a valid, authenticated-role token.
	// Any failure is domain.ErrUnauthorized.
	VerifyToken(tokenString string) (*models.SupabaseClaims, error)

	// Close releases resources such as the JWKS refresh goroutine
	Close() error
}
