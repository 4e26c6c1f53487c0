package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"chatstream/internal/domain"
	models "chatstream/internal/domain/models/chat"
	chatRepo "chatstream/internal/domain/repositories/chat"
	"chatstream/internal/repository/postgres"
)

// PostgresAPIKeyRepository implements chatRepo.APIKeyRepository.
// It only ever sees ciphertext.
type PostgresAPIKeyRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewAPIKeyRepository creates a new PostgresAPIKeyRepository
func NewAPIKeyRepository(config *postgres.RepositoryConfig) chatRepo.APIKeyRepository {
	return &PostgresAPIKeyRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Upsert stores or replaces the key for (user, provider)
func (r *PostgresAPIKeyRepository) Upsert(ctx context.Context, key *models.StoredAPIKey) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, provider, ciphertext, hint, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, provider)
		DO UPDATE SET ciphertext = EXCLUDED.ciphertext, hint = EXCLUDED.hint, updated_at = EXCLUDED.updated_at
	`, r.tables.APIKeys)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, key.UserID, key.Provider, key.Ciphertext, key.Hint, key.UpdatedAt); err != nil {
		return fmt.Errorf("upsert api key: %w", err)
	}
	return nil
}

// Get returns the sealed key for (user, provider)
func (r *PostgresAPIKeyRepository) Get(ctx context.Context, userID, provider string) (*models.StoredAPIKey, error) {
	query := fmt.Sprintf(`
		SELECT user_id, provider, ciphertext, hint, updated_at
		FROM %s WHERE user_id = $1 AND provider = $2
	`, r.tables.APIKeys)

	var k models.StoredAPIKey
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, userID, provider).Scan(&k.UserID, &k.Provider, &k.Ciphertext, &k.Hint, &k.UpdatedAt)
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, domain.NotFound("API key not found")
		}
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return &k, nil
}

// List returns the user's keys ordered by provider
func (r *PostgresAPIKeyRepository) List(ctx context.Context, userID string) ([]models.StoredAPIKey, error) {
	query := fmt.Sprintf(`
		SELECT user_id, provider, ciphertext, hint, updated_at
		FROM %s WHERE user_id = $1
		ORDER BY provider
	`, r.tables.APIKeys)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	keys := []models.StoredAPIKey{}
	for rows.Next() {
		var k models.StoredAPIKey
		if err := rows.Scan(&k.UserID, &k.Provider, &k.Ciphertext, &k.Hint, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Delete removes the key; deleting a missing key is not an error
func (r *PostgresAPIKeyRepository) Delete(ctx context.Context, userID, provider string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND provider = $2`, r.tables.APIKeys)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, userID, provider); err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	return nil
}
