package chat

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresVectorStore ranks kb_documents rows by exact L2 distance using
// pgvector. Ties are broken by id so results are stable.
type PostgresVectorStore struct {
	pool *pgxpool.Pool
}

func NewPostgresVectorStore(pool *pgxpool.Pool) *PostgresVectorStore {
	return &PostgresVectorStore{pool: pool}
}

func (s *PostgresVectorStore) SimilarDocuments(ctx context.Context, embedding []float32, k int) ([]Match, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedding is empty")
	}
	if k <= 0 {
		k = TopK
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, source, content, (embedding <-> $1::vector) AS distance
		FROM kb_documents
		ORDER BY distance, id
		LIMIT $2
	`, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("query similar documents: %w", err)
	}
	defer rows.Close()

	results := make([]Match, 0, k)
	for rows.Next() {
		var (
			item     Match
			distance float64
		)
		if err := rows.Scan(&item.ID, &item.Source, &item.Content, &distance); err != nil {
			return nil, fmt.Errorf("scan similar document: %w", err)
		}
		item.Score = 1 / (1 + distance)
		results = append(results, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate similar documents: %w", err)
	}

	return results, nil
}

var _ Retriever = (*PostgresVectorStore)(nil)
