package blobstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"chatstream/internal/domain/models"
)

// Blob operations a signed URL may authorize
const (
	OpPut = "put"
	OpGet = "get"
)

// ErrInvalidToken covers expired, tampered, or mismatched blob tokens
var ErrInvalidToken = errors.New("invalid blob token")

// Signer issues and checks HS256 tokens that authorize one operation on one blob
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a signer from the server's signing secret
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("signing secret cannot be empty")
	}
	return &Signer{secret: []byte(secret), now: time.Now}, nil
}

// Sign returns a token for op on storageID valid for ttl
func (s *Signer) Sign(storageID, op string, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(ttl)
	claims := models.BlobClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		StorageID: storageID,
		Op:        op,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign blob token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify checks that token authorizes op on storageID
func (s *Signer) Verify(token, storageID, op string) error {
	claims := &models.BlobClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return ErrInvalidToken
	}
	if claims.StorageID != storageID || claims.Op != op {
		return ErrInvalidToken
	}
	return nil
}
