package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatstream/internal/domain/repositories"
)

// RepositoryConfig holds configuration for repository implementations
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds dynamically prefixed table names
type TableNames struct {
	Conversations string
	Messages      string
	Attachments   string
	Summaries     string
	APIKeys       string
}

// NewTableNames creates table names with the given prefix (dev_, test_, or none in prod)
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Conversations: fmt.Sprintf("%sconversations", prefix),
		Messages:      fmt.Sprintf("%smessages", prefix),
		Attachments:   fmt.Sprintf("%sattachments", prefix),
		Summaries:     fmt.Sprintf("%smessage_summaries", prefix),
		APIKeys:       fmt.Sprintf("%sapi_keys", prefix),
	}
}

// CreateConnectionPool creates a pgx pool and pings it.
//
// PgBouncer in transaction pooling mode (port 6543 on Supabase) cannot hold
// prepared statements, so that port switches to QueryExecModeCacheDescribe unless
// default_query_exec_mode was set explicitly in the URL. CacheDescribe keeps the
// extended protocol, which the JSONB parts column needs.
//
// Table prefixes are interpolated with fmt.Sprintf before statements reach the
// server, so each environment gets its own cached statements.
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		slog.Debug("auto-configured cache_describe mode for PgBouncer compatibility", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// GetExecutor returns the transaction stored in ctx, or the pool when there is none.
// Repositories use it so they join a surrounding ExecTx automatically.
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	if tx := repositories.GetTx(ctx); tx != nil {
		return tx
	}
	return pool
}
