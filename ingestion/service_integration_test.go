package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/archipelago-assistant/config"
	"github.com/fabfab/archipelago-assistant/database"
)

type unitEmbedder struct {
	dim   int
	calls int
}

func (e *unitEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, e.dim)
		vec[0] = float32(len(text))
		out[i] = vec
	}
	return out, nil
}

func TestIngestDirectoryReplacesChangedFiles(t *testing.T) {
	if os.Getenv("RUN_DB_INTEGRATION_TESTS") != "1" {
		t.Skip("set RUN_DB_INTEGRATION_TESTS=1 to run database integration checks")
	}

	cfg, err := config.Load("")
	require.NoError(t, err)
	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	require.NoError(t, err)
	defer pool.Close()

	dir := t.TempDir()
	name := "brands-" + uuid.NewString() + ".csv"
	path := filepath.Join(dir, name)
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, "DELETE FROM kb_sources WHERE path = $1", name)
	})

	embedder := &unitEmbedder{dim: cfg.Embeddings.Dimension}
	svc := NewService(pool, embedder, nil, cfg.Embeddings.Dimension, "content")

	write := func(body string) {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}

	write("content,category\nASTON is the flagship brand,brands\nHuxley is ultra-chic,brands\n")
	summary, err := svc.IngestDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, Summary{Ingested: 1, Passages: 2}, summary)
	assert.Equal(t, 2, countPassages(t, pool, name))
	firstHash := storedHash(t, pool, name)

	calls := embedder.calls
	summary, err = svc.IngestDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, Summary{Unchanged: 1}, summary)
	assert.Equal(t, calls, embedder.calls, "unchanged files are not re-embedded")

	write("content,category\nFAVE Hotel is a lifestyle brand,brands\n")
	summary, err = svc.IngestDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, Summary{Ingested: 1, Passages: 1}, summary)
	assert.Equal(t, 1, countPassages(t, pool, name))
	secondHash := storedHash(t, pool, name)
	assert.NotEqual(t, firstHash, secondHash)

	write("content,category\n")
	summary, err = svc.IngestDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, Summary{Ingested: 1}, summary)
	assert.Equal(t, 0, countPassages(t, pool, name))
	assert.NotEqual(t, secondHash, storedHash(t, pool, name))
}

func countPassages(t *testing.T, pool *pgxpool.Pool, path string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), `
		SELECT count(*) FROM kb_documents d JOIN kb_sources s ON s.id = d.source_id WHERE s.path = $1
	`, path).Scan(&n))
	return n
}

func storedHash(t *testing.T, pool *pgxpool.Pool, path string) string {
	t.Helper()
	var hash string
	require.NoError(t, pool.QueryRow(context.Background(), "SELECT sha256 FROM kb_sources WHERE path = $1", path).Scan(&hash))
	return hash
}
