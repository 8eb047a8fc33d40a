package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// EnsureSchema creates the knowledge base tables. kb_sources holds one row
// per ingested file; kb_documents holds the embedded passages.
func EnsureSchema(ctx context.Context, db Execer, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}
	if db == nil {
		return fmt.Errorf("postgres connection is nil")
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		`CREATE TABLE IF NOT EXISTS kb_sources (
			id UUID PRIMARY KEY,
			path TEXT UNIQUE NOT NULL,
			format TEXT NOT NULL,
			sha256 TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS kb_documents (
			id UUID PRIMARY KEY,
			source_id UUID NOT NULL REFERENCES kb_sources(id) ON DELETE CASCADE,
			position INT NOT NULL,
			source TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(source_id, position)
		)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_kb_documents_source ON kb_documents(source_id)",
		// Searches are exact scans; remove the ivfflat index older schemas built.
		"DROP INDEX IF EXISTS idx_kb_documents_embedding",
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}

// Truncate removes every ingested source and passage.
func Truncate(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, "TRUNCATE kb_documents, kb_sources"); err != nil {
		return fmt.Errorf("truncate knowledge base tables: %w", err)
	}
	return nil
}
