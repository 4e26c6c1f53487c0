package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"chatstream/internal/domain"
	models "chatstream/internal/domain/models/chat"
	chatRepo "chatstream/internal/domain/repositories/chat"
	chatSvc "chatstream/internal/domain/services/chat"
)

// KeyProviders are the providers a user may store a key for
var KeyProviders = []string{"openai", "anthropic", "google", "openrouter"}

// Sealer encrypts stored keys; aad binds a ciphertext to its owner
type Sealer interface {
	Seal(plaintext, aad []byte) ([]byte, error)
	Open(sealed, aad []byte) ([]byte, error)
}

// APIKeyService implements chatSvc.APIKeyService
type APIKeyService struct {
	keys   chatRepo.APIKeyRepository
	vault  Sealer
	logger *slog.Logger
	now    func() time.Time
}

// NewAPIKeyService creates a new stored-key service
func NewAPIKeyService(keys chatRepo.APIKeyRepository, vault Sealer, logger *slog.Logger) *APIKeyService {
	return &APIKeyService{
		keys:   keys,
		vault:  vault,
		logger: logger,
		now:    time.Now,
	}
}

var _ chatSvc.APIKeyService = (*APIKeyService)(nil)

// Put stores (or replaces) the caller's key for provider
func (s *APIKeyService) Put(ctx context.Context, provider, key string, caller models.Caller) (*models.StoredAPIKey, error) {
	if !caller.IsAuthenticated() {
		return nil, domain.Unauthorized("Must be authenticated to store API keys")
	}
	key = strings.TrimSpace(key)
	if err := validation.Validate(provider, validation.Required, validation.In(toAny(KeyProviders)...)); err != nil {
		return nil, fmt.Errorf("%w: provider: %v", domain.ErrValidation, err)
	}
	if err := validation.Validate(key, validation.Required, validation.Length(8, 512)); err != nil {
		return nil, fmt.Errorf("%w: key: %v", domain.ErrValidation, err)
	}

	sealed, err := s.vault.Seal([]byte(key), keyAAD(caller.UserID, provider))
	if err != nil {
		return nil, fmt.Errorf("seal api key: %w", err)
	}

	stored := &models.StoredAPIKey{
		UserID:     caller.UserID,
		Provider:   provider,
		Ciphertext: sealed,
		Hint:       maskKey(key),
		UpdatedAt:  s.now().UTC(),
	}
	if err := s.keys.Upsert(ctx, stored); err != nil {
		return nil, err
	}

	s.logger.Info("api key stored", "provider", provider, "user_id", caller.UserID)
	return stored, nil
}

// List returns the caller's stored keys, masked
func (s *APIKeyService) List(ctx context.Context, caller models.Caller) ([]models.StoredAPIKey, error) {
	if !caller.IsAuthenticated() {
		return []models.StoredAPIKey{}, nil
	}
	return s.keys.List(ctx, caller.UserID)
}

// Delete removes the caller's key for provider
func (s *APIKeyService) Delete(ctx context.Context, provider string, caller models.Caller) error {
	if !caller.IsAuthenticated() {
		return domain.Unauthorized("Must be authenticated to delete API keys")
	}
	return s.keys.Delete(ctx, caller.UserID, provider)
}

// Lookup returns the plaintext key, or "" when none is stored
func (s *APIKeyService) Lookup(ctx context.Context, userID, provider string) (string, error) {
	if userID == "" {
		return "", nil
	}
	stored, err := s.keys.Get(ctx, userID, provider)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	plain, err := s.vault.Open(stored.Ciphertext, keyAAD(userID, provider))
	if err != nil {
		return "", fmt.Errorf("open api key: %w", err)
	}
	return string(plain), nil
}

func keyAAD(userID, provider string) []byte {
	return []byte(userID + "/" + provider)
}

// maskKey keeps only the last four characters
func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

func toAny(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
