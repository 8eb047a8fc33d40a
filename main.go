package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fabfab/archipelago-assistant/api"
	"github.com/fabfab/archipelago-assistant/catalog"
	"github.com/fabfab/archipelago-assistant/config"
	"github.com/fabfab/archipelago-assistant/database"
	"github.com/fabfab/archipelago-assistant/ingestion"
	"github.com/fabfab/archipelago-assistant/repl"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	if err := config.LoadEnvFile(""); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		serveCmd(os.Args[2:])
	case "chat":
		chatCmd(os.Args[2:])
	case "ingest":
		ingestCmd(os.Args[2:])
	case "clear":
		clearCmd(os.Args[2:])
	case "seed-catalog":
		seedCatalogCmd(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func serveCmd(args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := flags.String("config", "", "path to a TOML config file")
	_ = flags.Parse(args)

	cfg, logger := mustLoad(*configPath)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pipeline, closePipeline, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline setup")
	}
	defer closePipeline()

	directory, closeDirectory, err := newDirectory(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("catalog setup")
	}
	defer closeDirectory()

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.New(pipeline, directory, logger, api.Options{ExposeErrors: cfg.Server.ExposeErrors}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("llm", cfg.LLM.Provider+"/"+cfg.LLM.Model).Msg("serving archipelago assistant")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}
}

func chatCmd(args []string) {
	flags := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := flags.String("config", "", "path to a TOML config file")
	question := flags.String("question", "", "answer a single question and exit")
	_ = flags.Parse(args)

	cfg, logger := mustLoad(*configPath)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pipeline, closePipeline, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline setup")
	}
	defer closePipeline()

	if strings.TrimSpace(*question) != "" {
		answer, err := pipeline.Answer(ctx, *question)
		if err != nil {
			logger.Fatal().Err(err).Msg("chat failed")
		}
		fmt.Println(answer)
		return
	}

	if err := repl.Run(ctx, os.Stdin, os.Stdout, pipeline); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("chat loop")
	}
}

func ingestCmd(args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := flags.String("config", "", "path to a TOML config file")
	dataDir := flags.String("dir", "", "directory of csv, markdown and pdf files (default from config)")
	sourceColumn := flags.String("source-column", "", "csv column used as the passage source (default from config)")
	_ = flags.Parse(args)

	cfg, logger := mustLoad(*configPath)
	if *dataDir == "" {
		*dataDir = cfg.DataDir
	}
	if *sourceColumn == "" {
		*sourceColumn = cfg.SourceColumn
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection")
	}
	defer pool.Close()

	embedder, closeEmbedder, err := newEmbedder(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("embedder setup")
	}
	defer closeEmbedder()

	svc := ingestion.NewService(pool, embedder, logger, cfg.Embeddings.Dimension, *sourceColumn)
	logger.Info().
		Str("dir", *dataDir).
		Str("embeddings", strings.ToUpper(cfg.Embeddings.Provider)+"/"+cfg.Embeddings.Model).
		Msg("ingesting knowledge base")

	summary, err := svc.IngestDirectory(ctx, *dataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("ingestion failed")
	}
	logger.Info().
		Int("ingested", summary.Ingested).
		Int("unchanged", summary.Unchanged).
		Int("failed", summary.Failed).
		Int("passages", summary.Passages).
		Msg("ingestion complete")
}

func clearCmd(args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	configPath := flags.String("config", "", "path to a TOML config file")
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	withCatalog := flags.Bool("catalog", false, "also remove the Neo4j brand and hotel catalog")
	_ = flags.Parse(args)

	cfg, logger := mustLoad(*configPath)

	if !*confirmed {
		fmt.Print("This will permanently delete the ingested knowledge base. Continue? [y/N]: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				logger.Fatal().Err(err).Msg("read confirmation")
			}
			logger.Info().Msg("clear aborted")
			return
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if answer != "y" && answer != "yes" {
			logger.Info().Msg("clear aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection")
	}
	defer pool.Close()

	if err := database.EnsureSchema(ctx, pool, cfg.Embeddings.Dimension); err != nil {
		logger.Fatal().Err(err).Msg("ensure schema")
	}
	if err := database.Truncate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("clear knowledge base")
	}
	logger.Info().Msg("cleared kb_sources and kb_documents")

	if !*withCatalog {
		return
	}

	driver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		logger.Fatal().Err(err).Msg("neo4j connection")
	}
	defer driver.Close(ctx)

	if err := catalog.NewNeo4jDirectory(driver).Purge(ctx); err != nil {
		logger.Fatal().Err(err).Msg("clear catalog")
	}
	logger.Info().Msg("cleared Neo4j brand and hotel catalog")
}

func seedCatalogCmd(args []string) {
	flags := flag.NewFlagSet("seed-catalog", flag.ExitOnError)
	configPath := flags.String("config", "", "path to a TOML config file")
	_ = flags.Parse(args)

	cfg, logger := mustLoad(*configPath)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	driver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		logger.Fatal().Err(err).Msg("neo4j connection")
	}
	defer driver.Close(ctx)

	brands, hotels := catalog.DefaultBrands(), catalog.DefaultHotels()
	if err := catalog.NewNeo4jDirectory(driver).Seed(ctx, brands, hotels); err != nil {
		logger.Fatal().Err(err).Msg("seed catalog")
	}
	logger.Info().Int("brands", len(brands)).Int("hotels", len(hotels)).Msg("catalog seeded")
}

func printUsage() {
	fmt.Println("Usage: archipelago-assistant <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  serve         Serve the HTTP API and the chat UI at /chat")
	fmt.Println("  chat          Chat in the terminal (use -question for a single answer)")
	fmt.Println("  ingest        Load csv, markdown and pdf files into Postgres (use -dir to override the data directory)")
	fmt.Println("  clear         Remove the ingested knowledge base (use -catalog to also clear Neo4j)")
	fmt.Println("  seed-catalog  Load the brand and hotel catalog into Neo4j")
	fmt.Println("Every command accepts -config <file.toml>; environment variables and .env override it.")
}
