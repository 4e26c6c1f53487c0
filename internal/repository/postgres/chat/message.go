package chat

import (
	"context"
	"encoding/json"
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

const messageColumns = `id, conversation_id, role, content, parts, reasoning, is_complete,
	tool_calls, tool_outputs, created_at`

// PostgresMessageRepository implements chatRepo.MessageRepository.
// Parts and the tool projections are stored as JSONB.
type PostgresMessageRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewMessageRepository creates a new PostgresMessageRepository
func NewMessageRepository(config *postgres.RepositoryConfig) chatRepo.MessageRepository {
	return &PostgresMessageRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

func scanMessage(row scanner) (*models.Message, error) {
	var (
		m                             models.Message
		role                          string
		partsRaw, callsRaw, outputRaw []byte
	)
	err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&role,
		&m.Content,
		&partsRaw,
		&m.Reasoning,
		&m.IsComplete,
		&callsRaw,
		&outputRaw,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Role = models.Role(role)

	if len(partsRaw) > 0 {
		if err := json.Unmarshal(partsRaw, &m.Parts); err != nil {
			return nil, fmt.Errorf("decode parts of message %s: %w", m.ID, err)
		}
	}
	if len(callsRaw) > 0 {
		if err := json.Unmarshal(callsRaw, &m.ToolCalls); err != nil {
			return nil, fmt.Errorf("decode tool calls of message %s: %w", m.ID, err)
		}
	}
	if len(outputRaw) > 0 {
		if err := json.Unmarshal(outputRaw, &m.ToolOutputs); err != nil {
			return nil, fmt.Errorf("decode tool outputs of message %s: %w", m.ID, err)
		}
	}
	return &m, nil
}

// encodeJSONB returns nil for empty values so the column stays NULL
func encodeJSONB[T any](v []T) ([]byte, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return json.Marshal(v)
}

func encodeParts(parts models.Parts) ([]byte, error) {
	if len(parts) == 0 {
		return nil, nil
	}
	return json.Marshal(parts)
}

// Get retrieves a message by ID
func (r *PostgresMessageRepository) Get(ctx context.Context, id string) (*models.Message, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, messageColumns, r.tables.Messages)

	executor := postgres.GetExecutor(ctx, r.pool)
	msg, err := scanMessage(executor.QueryRow(ctx, query, id))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, domain.NotFound("Message not found")
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

// ListByConversation returns messages ordered by created_at ascending
func (r *PostgresMessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`, messageColumns, r.tables.Messages)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := []models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// CountByRole counts a conversation's messages with role
func (r *PostgresMessageRepository) CountByRole(ctx context.Context, conversationID string, role models.Role) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE conversation_id = $1 AND role = $2`, r.tables.Messages)

	var n int
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, conversationID, string(role)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// Last returns the newest message, or nil for an empty conversation
func (r *PostgresMessageRepository) Last(ctx context.Context, conversationID string) (*models.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, messageColumns, r.tables.Messages)

	executor := postgres.GetExecutor(ctx, r.pool)
	msg, err := scanMessage(executor.QueryRow(ctx, query, conversationID))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("last message: %w", err)
	}
	return msg, nil
}

// Create inserts a message
func (r *PostgresMessageRepository) Create(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	parts, err := encodeParts(msg.Parts)
	if err != nil {
		return fmt.Errorf("encode parts: %w", err)
	}
	calls, err := encodeJSONB(msg.ToolCalls)
	if err != nil {
		return fmt.Errorf("encode tool calls: %w", err)
	}
	outputs, err := encodeJSONB(msg.ToolOutputs)
	if err != nil {
		return fmt.Errorf("encode tool outputs: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, r.tables.Messages, messageColumns)

	executor := postgres.GetExecutor(ctx, r.pool)
	_, err = executor.Exec(ctx, query,
		msg.ID,
		msg.ConversationID,
		string(msg.Role),
		msg.Content,
		parts,
		msg.Reasoning,
		msg.IsComplete,
		calls,
		outputs,
		msg.CreatedAt,
	)
	if err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return domain.NotFound("Conversation not found")
		}
		if postgres.IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("message %s already exists", msg.ID),
				ResourceType: "message",
				ResourceID:   msg.ID,
			}
		}
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// lostClaim is returned when a conditioned write matched no row
func lostClaim(messageID string) error {
	return &domain.ConflictError{
		Message:      fmt.Sprintf("message %s is complete or claimed by another writer", messageID),
		ResourceType: "message",
		ResourceID:   messageID,
	}
}

// Claim marks an incomplete message as owned by writerID. Reclaiming by the
// same writer is allowed.
func (r *PostgresMessageRepository) Claim(ctx context.Context, messageID, writerID string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET writer_id = $2
		WHERE id = $1 AND is_complete = FALSE AND (writer_id IS NULL OR writer_id = $2)
	`, r.tables.Messages)

	executor := postgres.GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, messageID, writerID)
	if err != nil {
		return fmt.Errorf("claim message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return lostClaim(messageID)
	}
	return nil
}

type snapshotArgs struct {
	parts, calls, outputs []byte
	reasoning             *string
}

func encodeSnapshot(snap models.MessageSnapshot) (snapshotArgs, error) {
	var a snapshotArgs
	var err error
	if a.parts, err = encodeParts(snap.Parts); err != nil {
		return a, fmt.Errorf("encode parts: %w", err)
	}
	if a.calls, err = encodeJSONB(snap.ToolCalls); err != nil {
		return a, fmt.Errorf("encode tool calls: %w", err)
	}
	if a.outputs, err = encodeJSONB(snap.ToolOutputs); err != nil {
		return a, fmt.Errorf("encode tool outputs: %w", err)
	}
	if snap.Reasoning != "" {
		reasoning := snap.Reasoning
		a.reasoning = &reasoning
	}
	return a, nil
}

// WriteSnapshot persists the full streaming state while writerID holds the claim
func (r *PostgresMessageRepository) WriteSnapshot(ctx context.Context, messageID, writerID string, snap models.MessageSnapshot) error {
	args, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET content = $3, parts = $4, reasoning = $5, tool_calls = $6, tool_outputs = $7
		WHERE id = $1 AND writer_id = $2 AND is_complete = FALSE
	`, r.tables.Messages)

	executor := postgres.GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query,
		messageID, writerID, snap.Content, args.parts, args.reasoning, args.calls, args.outputs)
	if err != nil {
		return fmt.Errorf("write message snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return lostClaim(messageID)
	}
	return nil
}

// Finalize seals the message: is_complete is set, reasoning and the claim are cleared
func (r *PostgresMessageRepository) Finalize(ctx context.Context, messageID, writerID string, snap models.MessageSnapshot) error {
	args, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET content = $3, parts = $4, tool_calls = $5, tool_outputs = $6,
			is_complete = TRUE, reasoning = NULL, writer_id = NULL
		WHERE id = $1 AND writer_id = $2 AND is_complete = FALSE
	`, r.tables.Messages)

	executor := postgres.GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query,
		messageID, writerID, snap.Content, args.parts, args.calls, args.outputs)
	if err != nil {
		return fmt.Errorf("finalize message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return lostClaim(messageID)
	}
	return nil
}

// DeleteFrom removes messages at or after (inclusive) or strictly after cutoff.
// Summaries cascade.
func (r *PostgresMessageRepository) DeleteFrom(ctx context.Context, conversationID string, cutoff time.Time, inclusive bool) (int64, error) {
	op := ">"
	if inclusive {
		op = ">="
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE conversation_id = $1 AND created_at %s $2`, r.tables.Messages, op)

	executor := postgres.GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, conversationID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete trailing messages: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SealAbandoned completes messages still streaming since before olderThan.
// Messages that never received text get content as their only part.
func (r *PostgresMessageRepository) SealAbandoned(ctx context.Context, olderThan time.Time, content string) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET content = CASE WHEN content = '' THEN $2 ELSE content END,
			parts = CASE WHEN content = '' THEN jsonb_build_array(jsonb_build_object('type', 'text', 'text', $2::text)) ELSE parts END,
			is_complete = TRUE, reasoning = NULL, writer_id = NULL
		WHERE is_complete = FALSE AND created_at < $1
	`, r.tables.Messages)

	executor := postgres.GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, olderThan, content)
	if err != nil {
		return 0, fmt.Errorf("seal abandoned messages: %w", err)
	}
	return tag.RowsAffected(), nil
}
