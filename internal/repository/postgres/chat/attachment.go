package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatstream/internal/domain"
	models "chatstream/internal/domain/models/chat"
	chatRepo "chatstream/internal/domain/repositories/chat"
	"chatstream/internal/repository/postgres"
)

const attachmentColumns = `id, user_id, storage_id, file_name, content_type, conversation_id, prompt_tokens, created_at`

// PostgresAttachmentRepository implements chatRepo.AttachmentRepository
type PostgresAttachmentRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewAttachmentRepository creates a new PostgresAttachmentRepository
func NewAttachmentRepository(config *postgres.RepositoryConfig) chatRepo.AttachmentRepository {
	return &PostgresAttachmentRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

func scanAttachment(row scanner) (*models.Attachment, error) {
	var a models.Attachment
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.StorageID,
		&a.FileName,
		&a.ContentType,
		&a.ConversationID,
		&a.PromptTokens,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts attachment metadata
func (r *PostgresAttachmentRepository) Create(ctx context.Context, a *models.Attachment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.tables.Attachments, attachmentColumns)

	executor := postgres.GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		a.ID,
		a.UserID,
		a.StorageID,
		a.FileName,
		a.ContentType,
		a.ConversationID,
		a.PromptTokens,
		a.CreatedAt,
	)
	if err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return domain.NotFound("Conversation not found")
		}
		return fmt.Errorf("create attachment: %w", err)
	}
	return nil
}

// Get retrieves an attachment by ID
func (r *PostgresAttachmentRepository) Get(ctx context.Context, id string) (*models.Attachment, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, attachmentColumns, r.tables.Attachments)

	executor := postgres.GetExecutor(ctx, r.pool)
	a, err := scanAttachment(executor.QueryRow(ctx, query, id))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, domain.NotFound("Attachment not found")
		}
		return nil, fmt.Errorf("get attachment: %w", err)
	}
	return a, nil
}

func (r *PostgresAttachmentRepository) list(ctx context.Context, query string, arg string) ([]models.Attachment, error) {
	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	items := []models.Attachment{}
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		items = append(items, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}
	return items, nil
}

// ListByConversation returns attachments linked to a conversation
func (r *PostgresAttachmentRepository) ListByConversation(ctx context.Context, conversationID string) ([]models.Attachment, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`, attachmentColumns, r.tables.Attachments)
	return r.list(ctx, query, conversationID)
}

// ListByUser returns a user's attachments, newest first
func (r *PostgresAttachmentRepository) ListByUser(ctx context.Context, userID string) ([]models.Attachment, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, attachmentColumns, r.tables.Attachments)
	return r.list(ctx, query, userID)
}

// LinkConversation sets conversation_id only when it is still unset
func (r *PostgresAttachmentRepository) LinkConversation(ctx context.Context, id, conversationID string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET conversation_id = $2
		WHERE id = $1 AND conversation_id IS NULL
	`, r.tables.Attachments)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, id, conversationID); err != nil {
		return fmt.Errorf("link attachment: %w", err)
	}
	return nil
}

// SetPromptTokens annotates every listed attachment with the same estimate
func (r *PostgresAttachmentRepository) SetPromptTokens(ctx context.Context, ids []string, promptTokens int) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`UPDATE %s SET prompt_tokens = $2 WHERE id = ANY($1)`, r.tables.Attachments)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, ids, promptTokens); err != nil {
		return fmt.Errorf("set attachment prompt tokens: %w", err)
	}
	return nil
}

// Delete removes attachment metadata; the blob is removed by the caller
func (r *PostgresAttachmentRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Attachments)

	executor := postgres.GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("Attachment not found")
	}
	return nil
}
