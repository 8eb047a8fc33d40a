package main

import (
	"context"
	"fmt"
	"os"

	"github.com/phuslu/log"

	"github.com/fabfab/archipelago-assistant/catalog"
	"github.com/fabfab/archipelago-assistant/chat"
	"github.com/fabfab/archipelago-assistant/config"
	"github.com/fabfab/archipelago-assistant/database"
	"github.com/fabfab/archipelago-assistant/embeddings"
	"github.com/fabfab/archipelago-assistant/llm"
)

func mustLoad(path string) (config.Config, *log.Logger) {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	return cfg, newLogger(cfg.Logging)
}

// newLogger writes to stderr so that chat output on stdout stays clean.
func newLogger(cfg config.LoggingConfig) *log.Logger {
	logger := &log.Logger{
		Level:      log.ParseLevel(cfg.Level),
		TimeFormat: "15:04:05",
	}
	if cfg.Format == "json" {
		logger.TimeFormat = ""
		logger.Writer = &log.IOWriter{Writer: os.Stderr}
	} else {
		logger.Writer = &log.ConsoleWriter{
			Writer:      os.Stderr,
			ColorOutput: log.IsTerminal(os.Stderr.Fd()),
		}
	}
	return logger
}

// newEmbedder wraps the configured embedder with the redis cache when
// REDIS_ADDR is set.
func newEmbedder(ctx context.Context, cfg config.Config, logger *log.Logger) (embeddings.Embedder, func(), error) {
	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Cache.RedisAddr == "" {
		return embedder, func() {}, nil
	}

	ttl, err := cfg.Cache.TTLDuration()
	if err != nil {
		return nil, nil, err
	}
	client, err := database.NewRedisClient(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Str("addr", cfg.Cache.RedisAddr).Dur("ttl", ttl).Msg("embedding cache enabled")

	cached := embeddings.NewCachedEmbedder(embedder, client, cfg.Embeddings.Model, ttl, logger)
	return cached, func() { _ = client.Close() }, nil
}

// newPipeline connects every collaborator once; the returned func releases
// them.
func newPipeline(ctx context.Context, cfg config.Config, logger *log.Logger) (*chat.Pipeline, func(), error) {
	embedder, closeEmbedder, err := newEmbedder(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("embedder setup: %w", err)
	}

	generator, err := llm.NewClient(cfg)
	if err != nil {
		closeEmbedder()
		return nil, nil, fmt.Errorf("llm setup: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		closeEmbedder()
		return nil, nil, fmt.Errorf("postgres connection: %w", err)
	}

	pipeline := chat.NewPipeline(embedder, chat.NewPostgresVectorStore(pool), generator, logger)
	return pipeline, func() {
		pool.Close()
		closeEmbedder()
	}, nil
}

func newDirectory(ctx context.Context, cfg config.Config) (catalog.Directory, func(), error) {
	if cfg.Catalog.Backend != config.CatalogNeo4j {
		return catalog.NewDefaultDirectory(), func() {}, nil
	}

	driver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		return nil, nil, fmt.Errorf("neo4j connection: %w", err)
	}
	return catalog.NewNeo4jDirectory(driver), func() { _ = driver.Close(context.Background()) }, nil
}
