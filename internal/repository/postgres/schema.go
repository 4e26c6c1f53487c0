package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the chat tables and indexes for the configured prefix.
// Every statement is idempotent so it runs on each boot.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames, prefix string) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS ` + tables.Conversations + ` (
			id TEXT PRIMARY KEY,
			uuid TEXT NOT NULL,
			title TEXT NOT NULL,
			user_id TEXT,
			session_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_message_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			is_branched BOOLEAN NOT NULL DEFAULT FALSE,
			branched_from TEXT,
			branched_from_title TEXT,
			is_public BOOLEAN NOT NULL DEFAULT FALSE,
			CHECK ((user_id IS NULL) <> (session_id IS NULL))
		)`,
		`CREATE TABLE IF NOT EXISTS ` + tables.Messages + ` (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES ` + tables.Conversations + `(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			parts JSONB,
			reasoning TEXT,
			is_complete BOOLEAN NOT NULL DEFAULT TRUE,
			tool_calls JSONB,
			tool_outputs JSONB,
			writer_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS ` + tables.Summaries + ` (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES ` + tables.Conversations + `(id) ON DELETE CASCADE,
			message_id TEXT NOT NULL REFERENCES ` + tables.Messages + `(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS ` + tables.Attachments + ` (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			storage_id TEXT NOT NULL,
			file_name TEXT NOT NULL,
			content_type TEXT NOT NULL,
			conversation_id TEXT REFERENCES ` + tables.Conversations + `(id) ON DELETE SET NULL,
			prompt_tokens INTEGER,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS ` + tables.APIKeys + ` (
			user_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			ciphertext BYTEA NOT NULL,
			hint TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, provider)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_` + prefix + `conversations_user_uuid ON ` + tables.Conversations + `(user_id, uuid) WHERE user_id IS NOT NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_` + prefix + `conversations_session_uuid ON ` + tables.Conversations + `(session_id, uuid) WHERE session_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_` + prefix + `conversations_uuid ON ` + tables.Conversations + `(uuid)`,
		`CREATE INDEX IF NOT EXISTS idx_` + prefix + `conversations_user_last ON ` + tables.Conversations + `(user_id, last_message_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_` + prefix + `messages_conversation_created ON ` + tables.Messages + `(conversation_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_` + prefix + `messages_incomplete ON ` + tables.Messages + `(created_at) WHERE is_complete = FALSE`,
		`CREATE INDEX IF NOT EXISTS idx_` + prefix + `summaries_message ON ` + tables.Summaries + `(message_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_` + prefix + `summaries_conversation ON ` + tables.Summaries + `(conversation_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_` + prefix + `attachments_user ON ` + tables.Attachments + `(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_` + prefix + `attachments_conversation ON ` + tables.Attachments + `(conversation_id)`,
	}

	for i, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
