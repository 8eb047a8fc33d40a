package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/phuslu/log"

	"github.com/fabfab/archipelago-assistant/database"
	"github.com/fabfab/archipelago-assistant/embeddings"
)

// EmbedBatchSize bounds the texts sent to the embedder per request.
const EmbedBatchSize = 64

type Service struct {
	pool         *pgxpool.Pool
	embedder     embeddings.Embedder
	logger       *log.Logger
	dimension    int
	sourceColumn string
}

func NewService(pool *pgxpool.Pool, embedder embeddings.Embedder, logger *log.Logger, dimension int, sourceColumn string) *Service {
	if logger == nil {
		logger = &log.DefaultLogger
	}

	return &Service{
		pool:         pool,
		embedder:     embedder,
		logger:       logger,
		dimension:    dimension,
		sourceColumn: sourceColumn,
	}
}

// Summary counts what one IngestDirectory run did.
type Summary struct {
	Ingested  int
	Unchanged int
	Failed    int
	Passages  int
}

// IngestDirectory loads every supported file under dir. A file that fails
// is logged and counted; the walk continues.
func (s *Service) IngestDirectory(ctx context.Context, dir string) (Summary, error) {
	var summary Summary

	if s.embedder == nil {
		return summary, fmt.Errorf("embedder not configured")
	}
	if s.pool == nil {
		return summary, fmt.Errorf("postgres pool is nil")
	}
	if err := database.EnsureSchema(ctx, s.pool, s.dimension); err != nil {
		return summary, fmt.Errorf("ensure schema: %w", err)
	}

	paths, err := collectFiles(dir)
	if err != nil {
		return summary, err
	}
	if len(paths) == 0 {
		s.logger.Warn().Str("dir", dir).Msg("no csv, markdown or pdf files found")
		return summary, nil
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		n, changed, err := s.ingestFile(ctx, dir, path)
		switch {
		case err != nil:
			summary.Failed++
			s.logger.Error().Err(err).Str("path", path).Msg("ingest failed")
		case !changed:
			summary.Unchanged++
		default:
			summary.Ingested++
			summary.Passages += n
		}
	}

	return summary, nil
}

func collectFiles(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}

	paths := make([]string, 0)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if DetectFormat(d.Name()) != FormatUnknown {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk data directory: %w", err)
	}

	slices.Sort(paths)
	return paths, nil
}

func (s *Service) ingestFile(ctx context.Context, root, path string) (n int, changed bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false, fmt.Errorf("read file: %w", err)
	}

	relPath, relErr := filepath.Rel(root, path)
	if relErr != nil {
		relPath = path
	}
	relPath = filepath.ToSlash(relPath)

	format := DetectFormat(path)
	hash := sha256.Sum256(data)
	hashHex := hex.EncodeToString(hash[:])

	existingHash, err := s.sourceHash(ctx, relPath)
	if err != nil {
		return 0, false, err
	}
	if existingHash == hashHex {
		s.logger.Debug().Str("path", relPath).Msg("no updates required")
		return 0, false, nil
	}

	parser := ParserFor(format, s.sourceColumn)
	passages, err := parser.Parse(ctx, DocumentPayload{Path: relPath, Data: data})
	if err != nil {
		return 0, false, err
	}
	if len(passages) == 0 {
		s.logger.Info().Str("path", relPath).Msg("document is empty; removing its passages")
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Content
	}
	var vectors [][]float32
	if len(texts) > 0 {
		if vectors, err = EmbedInBatches(ctx, s.embedder, texts, EmbedBatchSize); err != nil {
			return 0, false, fmt.Errorf("generate embeddings: %w", err)
		}
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("rollback error")
			}
		}
	}()

	sourceID, err := upsertSource(ctx, tx, relPath, string(format), hashHex)
	if err != nil {
		return 0, false, err
	}

	if _, err = tx.Exec(ctx, "DELETE FROM kb_documents WHERE source_id = $1", sourceID); err != nil {
		return 0, false, fmt.Errorf("clear existing passages: %w", err)
	}

	for idx, passage := range passages {
		if _, err = tx.Exec(ctx, `
			INSERT INTO kb_documents (id, source_id, position, source, content, embedding)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.New(), sourceID, idx, passage.Source, passage.Content, pgvector.NewVector(vectors[idx])); err != nil {
			return 0, false, fmt.Errorf("insert passage %d: %w", idx, err)
		}
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return 0, false, fmt.Errorf("commit transaction: %w", commitErr)
	}

	s.logger.Info().Str("path", relPath).Str("format", string(format)).Int("passages", len(passages)).Msg("ingested")
	return len(passages), true, nil
}

func (s *Service) sourceHash(ctx context.Context, path string) (string, error) {
	var hash string
	err := s.pool.QueryRow(ctx, "SELECT sha256 FROM kb_sources WHERE path = $1", path).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query source: %w", err)
	}
	return hash, nil
}

func upsertSource(ctx context.Context, tx pgx.Tx, path, format, sha string) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `
		INSERT INTO kb_sources (id, path, format, sha256)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (path) DO UPDATE
		SET format = EXCLUDED.format,
		    sha256 = EXCLUDED.sha256,
		    updated_at = NOW()
		RETURNING id
	`, uuid.New(), path, format, sha).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert source: %w", err)
	}
	return id, nil
}

// EmbedInBatches embeds texts in order, at most size per embedder call.
func EmbedInBatches(ctx context.Context, embedder embeddings.Embedder, texts []string, size int) ([][]float32, error) {
	if size <= 0 {
		size = EmbedBatchSize
	}

	vectors := make([][]float32, 0, len(texts))
	for batch := range slices.Chunk(texts, size) {
		out, err := embedder.Embed(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(out) != len(batch) {
			return nil, fmt.Errorf("embedding count mismatch: have %d texts, %d embeddings", len(batch), len(out))
		}
		vectors = append(vectors, out...)
	}
	return vectors, nil
}
