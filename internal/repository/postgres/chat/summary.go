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

// PostgresSummaryRepository implements chatRepo.SummaryRepository. Rows are never updated.
type PostgresSummaryRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewSummaryRepository creates a new PostgresSummaryRepository
func NewSummaryRepository(config *postgres.RepositoryConfig) chatRepo.SummaryRepository {
	return &PostgresSummaryRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create appends a summary
func (r *PostgresSummaryRepository) Create(ctx context.Context, s *models.MessageSummary) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, conversation_id, message_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, r.tables.Summaries)

	executor := postgres.GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query, s.ID, s.ConversationID, s.MessageID, s.Content, s.CreatedAt)
	if err != nil {
		// The message was deleted while the job ran
		if postgres.IsPgForeignKeyError(err) {
			return domain.NotFound("Message not found")
		}
		return fmt.Errorf("create summary: %w", err)
	}
	return nil
}

func (r *PostgresSummaryRepository) list(ctx context.Context, column, value string) ([]models.MessageSummary, error) {
	query := fmt.Sprintf(`
		SELECT id, conversation_id, message_id, content, created_at
		FROM %s
		WHERE %s = $1
		ORDER BY created_at ASC
	`, r.tables.Summaries, column)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	summaries := []models.MessageSummary{}
	for rows.Next() {
		var s models.MessageSummary
		if err := rows.Scan(&s.ID, &s.ConversationID, &s.MessageID, &s.Content, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// ListByMessage returns a message's summaries in creation order
func (r *PostgresSummaryRepository) ListByMessage(ctx context.Context, messageID string) ([]models.MessageSummary, error) {
	return r.list(ctx, "message_id", messageID)
}

// ListByConversation returns a conversation's summaries in creation order
func (r *PostgresSummaryRepository) ListByConversation(ctx context.Context, conversationID string) ([]models.MessageSummary, error) {
	return r.list(ctx, "conversation_id", conversationID)
}
