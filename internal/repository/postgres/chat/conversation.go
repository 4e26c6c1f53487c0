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

const conversationColumns = `id, uuid, title, user_id, session_id, created_at, updated_at,
	last_message_at, is_branched, branched_from, branched_from_title, is_public`

// PostgresConversationRepository implements chatRepo.ConversationRepository
type PostgresConversationRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewConversationRepository creates a new PostgresConversationRepository
func NewConversationRepository(config *postgres.RepositoryConfig) chatRepo.ConversationRepository {
	return &PostgresConversationRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (*models.Conversation, error) {
	var c models.Conversation
	err := row.Scan(
		&c.ID,
		&c.UUID,
		&c.Title,
		&c.UserID,
		&c.SessionID,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.LastMessageAt,
		&c.IsBranched,
		&c.BranchedFrom,
		&c.BranchedFromTitle,
		&c.IsPublic,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a conversation. A concurrent create for the same owner and uuid
// resolves to the existing row.
func (r *PostgresConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.UUID == "" {
		conv.UUID = uuid.NewString()
	}
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}
	if conv.LastMessageAt.IsZero() {
		conv.LastMessageAt = conv.CreatedAt
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, r.tables.Conversations, conversationColumns)

	executor := postgres.GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		conv.ID,
		conv.UUID,
		conv.Title,
		conv.UserID,
		conv.SessionID,
		conv.CreatedAt,
		conv.UpdatedAt,
		conv.LastMessageAt,
		conv.IsBranched,
		conv.BranchedFrom,
		conv.BranchedFromTitle,
		conv.IsPublic,
	)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			var userID, sessionID string
			if conv.UserID != nil {
				userID = *conv.UserID
			} else if conv.SessionID != nil {
				sessionID = *conv.SessionID
			}
			existing, findErr := r.FindForOwner(ctx, conv.UUID, userID, sessionID)
			if findErr != nil {
				return &domain.ConflictError{
					Message:      fmt.Sprintf("conversation %s already exists", conv.UUID),
					ResourceType: "conversation",
				}
			}
			*conv = *existing
			return nil
		}
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// Get retrieves a conversation by ID
func (r *PostgresConversationRepository) Get(ctx context.Context, id string) (*models.Conversation, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, conversationColumns, r.tables.Conversations)

	executor := postgres.GetExecutor(ctx, r.pool)
	conv, err := scanConversation(executor.QueryRow(ctx, query, id))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, domain.NotFound("Conversation not found")
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return conv, nil
}

// GetByUUID retrieves the oldest conversation with the given external uuid
func (r *PostgresConversationRepository) GetByUUID(ctx context.Context, convUUID string) (*models.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE uuid = $1
		ORDER BY created_at ASC
		LIMIT 1
	`, conversationColumns, r.tables.Conversations)

	executor := postgres.GetExecutor(ctx, r.pool)
	conv, err := scanConversation(executor.QueryRow(ctx, query, convUUID))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, domain.NotFound("Conversation not found")
		}
		return nil, fmt.Errorf("get conversation by uuid: %w", err)
	}
	return conv, nil
}

// FindForOwner looks up uuid under the user (when userID is set) or the guest session
func (r *PostgresConversationRepository) FindForOwner(ctx context.Context, convUUID, userID, sessionID string) (*models.Conversation, error) {
	column, owner := "user_id", userID
	if userID == "" {
		column, owner = "session_id", sessionID
	}
	if owner == "" {
		return nil, domain.NotFound("Conversation not found")
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE uuid = $1 AND %s = $2`,
		conversationColumns, r.tables.Conversations, column)

	executor := postgres.GetExecutor(ctx, r.pool)
	conv, err := scanConversation(executor.QueryRow(ctx, query, convUUID, owner))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, domain.NotFound("Conversation not found")
		}
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return conv, nil
}

func (r *PostgresConversationRepository) list(ctx context.Context, query string, args ...any) ([]models.Conversation, error) {
	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	convs := []models.Conversation{}
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, *conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return convs, nil
}

// ListByUser returns a user's conversations, most recent activity first
func (r *PostgresConversationRepository) ListByUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE user_id = $1
		ORDER BY last_message_at DESC
	`, conversationColumns, r.tables.Conversations)
	return r.list(ctx, query, userID)
}

// ListBySession returns a guest session's conversations
func (r *PostgresConversationRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE session_id = $1
		ORDER BY last_message_at DESC
	`, conversationColumns, r.tables.Conversations)
	return r.list(ctx, query, sessionID)
}

func (r *PostgresConversationRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	executor := postgres.GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("Conversation not found")
	}
	return nil
}

// UpdateTitle sets the title and bumps updated_at
func (r *PostgresConversationRepository) UpdateTitle(ctx context.Context, id, title string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET title = $2, updated_at = $3 WHERE id = $1`, r.tables.Conversations)
	return r.execOne(ctx, "update conversation title", query, id, title, at)
}

// SetPublic sets the visibility flag
func (r *PostgresConversationRepository) SetPublic(ctx context.Context, id string, isPublic bool) error {
	query := fmt.Sprintf(`UPDATE %s SET is_public = $2, updated_at = NOW() WHERE id = $1`, r.tables.Conversations)
	return r.execOne(ctx, "set conversation visibility", query, id, isPublic)
}

// LockForUpdate serializes writers that check-then-insert against one conversation
func (r *PostgresConversationRepository) LockForUpdate(ctx context.Context, id string) error {
	query := fmt.Sprintf(`SELECT id FROM %s WHERE id = $1 FOR UPDATE`, r.tables.Conversations)

	var locked string
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, id).Scan(&locked); err != nil {
		if postgres.IsPgNoRowsError(err) {
			return domain.NotFound("Conversation not found")
		}
		return fmt.Errorf("lock conversation: %w", err)
	}
	return nil
}

// Touch records message activity
func (r *PostgresConversationRepository) Touch(ctx context.Context, id string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET last_message_at = $2, updated_at = $2 WHERE id = $1`, r.tables.Conversations)
	return r.execOne(ctx, "touch conversation", query, id, at)
}

// Delete removes a conversation; messages and summaries cascade
func (r *PostgresConversationRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Conversations)
	return r.execOne(ctx, "delete conversation", query, id)
}

// DeleteBySession removes every conversation of a guest session
func (r *PostgresConversationRepository) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE session_id = $1`, r.tables.Conversations)

	executor := postgres.GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, sessionID)
	if err != nil {
		return 0, fmt.Errorf("delete session conversations: %w", err)
	}
	return tag.RowsAffected(), nil
}
