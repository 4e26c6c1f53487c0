package models

import "github.com/golang-jwt/jwt/v5"

// SupabaseClaims is the subset of Supabase Auth JWT claims the API reads.
// See: https://supabase.com/docs/guides/auth/jwts
type SupabaseClaims struct {
	jwt.RegisteredClaims
	Email       string `json:"email"`
	Role        string `json:"role"` // "authenticated" or "anon"
	SessionID   string `json:"session_id"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// GetUserID returns the user ID from the JWT subject claim
func (c *SupabaseClaims) GetUserID() string {
	return c.Subject
}

// BlobClaims authorize one operation on one stored blob.
// Signed with the server's HMAC secret and embedded in upload/read URLs.
type BlobClaims struct {
	jwt.RegisteredClaims
	StorageID string `json:"sid"`
	Op        string `json:"op"` // "put" or "get"
}
