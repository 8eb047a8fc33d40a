package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderReplicate = "replicate"

	CatalogStatic = "static"
	CatalogNeo4j  = "neo4j"
)

type Config struct {
	Server     ServerConfig    `toml:"server"`
	LLM        LLMConfig       `toml:"llm"`
	Embeddings EmbeddingConfig `toml:"embeddings"`
	Cache      CacheConfig     `toml:"cache"`
	Catalog    CatalogConfig   `toml:"catalog"`
	Logging    LoggingConfig   `toml:"logging"`

	DataDir      string `toml:"data_dir"`
	SourceColumn string `toml:"source_column"`

	PostgresDSN string `toml:"postgres_dsn" validate:"required"`
	Neo4jURI    string `toml:"neo4j_uri"`
	Neo4jUser   string `toml:"neo4j_username"`
	Neo4jPass   string `toml:"neo4j_password"`

	OllamaHost       string `toml:"ollama_host"`
	OpenAIAPIKey     string `toml:"-"`
	OpenAIBaseURL    string `toml:"openai_base_url"`
	ReplicateToken   string `toml:"-"`
	ReplicateBaseURL string `toml:"replicate_base_url"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port" validate:"min=1,max=65535"`
	// ExposeErrors returns raw upstream error text to HTTP callers.
	ExposeErrors bool `toml:"expose_errors"`
}

type LLMConfig struct {
	Provider string `toml:"provider" validate:"oneof=replicate openai ollama"`
	Model    string `toml:"model" validate:"required"`
}

type EmbeddingConfig struct {
	Provider  string `toml:"provider" validate:"oneof=openai ollama"`
	Model     string `toml:"model" validate:"required"`
	Dimension int    `toml:"dimension" validate:"gt=0"`
}

type CacheConfig struct {
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"-"`
	RedisDB       int    `toml:"redis_db" validate:"min=0"`
	TTL           string `toml:"ttl"` // e.g. "24h"
}

type CatalogConfig struct {
	Backend string `toml:"backend" validate:"oneof=static neo4j"`
}

type LoggingConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=console json"`
}

// Default returns the configuration used when neither a file nor the
// environment override a value.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         5000,
			ExposeErrors: true,
		},
		LLM: LLMConfig{
			Provider: ProviderReplicate,
			Model:    "ibm-granite/granite-3.3-8b-instruct",
		},
		Embeddings: EmbeddingConfig{
			Provider:  ProviderOllama,
			Model:     "all-minilm",
			Dimension: 384,
		},
		Cache: CacheConfig{
			TTL: "24h",
		},
		Catalog: CatalogConfig{Backend: CatalogStatic},
		Logging: LoggingConfig{Level: "info", Format: "console"},

		DataDir:      "data",
		SourceColumn: "content",

		PostgresDSN:      "postgres://localhost:5432/archipelago?sslmode=disable",
		Neo4jURI:         "neo4j://localhost:7687",
		Neo4jUser:        "neo4j",
		Neo4jPass:        "password",
		OllamaHost:       "http://localhost:11434",
		ReplicateBaseURL: "https://api.replicate.com",
	}
}

// LoadEnvFile populates the process environment from a dotenv file. A
// missing file is not an error. Variables already set are left untouched.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load builds the configuration from defaults, the optional TOML file at
// path and the environment, in that order of precedence.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides cfg from the environment. Every malformed numeric or
// boolean variable is reported.
func applyEnv(cfg *Config) error {
	var env envErrors
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = env.intVar("SERVER_PORT", cfg.Server.Port)
	cfg.Server.ExposeErrors = env.boolVar("SERVER_EXPOSE_ERRORS", cfg.Server.ExposeErrors)

	cfg.LLM.Provider = strings.ToLower(getEnv("LLM_PROVIDER", cfg.LLM.Provider))
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)

	cfg.Embeddings.Provider = strings.ToLower(getEnv("EMBEDDINGS_PROVIDER", cfg.Embeddings.Provider))
	cfg.Embeddings.Model = getEnv("EMBEDDINGS_MODEL", cfg.Embeddings.Model)
	cfg.Embeddings.Dimension = env.intVar("EMBEDDINGS_DIMENSION", cfg.Embeddings.Dimension)

	cfg.Cache.RedisAddr = getEnv("REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = getEnv("REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = env.intVar("REDIS_DB", cfg.Cache.RedisDB)
	cfg.Cache.TTL = getEnv("EMBEDDING_CACHE_TTL", cfg.Cache.TTL)

	cfg.Catalog.Backend = strings.ToLower(getEnv("CATALOG_BACKEND", cfg.Catalog.Backend))

	cfg.Logging.Level = strings.ToLower(getEnv("LOG_LEVEL", cfg.Logging.Level))
	cfg.Logging.Format = strings.ToLower(getEnv("LOG_FORMAT", cfg.Logging.Format))

	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)
	cfg.SourceColumn = getEnv("SOURCE_COLUMN", cfg.SourceColumn)

	cfg.PostgresDSN = getEnv("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.Neo4jURI = getEnv("NEO4J_URI", cfg.Neo4jURI)
	cfg.Neo4jUser = getEnv("NEO4J_USERNAME", cfg.Neo4jUser)
	cfg.Neo4jPass = getEnv("NEO4J_PASSWORD", cfg.Neo4jPass)

	cfg.OllamaHost = getEnv("OLLAMA_HOST", cfg.OllamaHost)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.ReplicateToken = getEnv("REPLICATE_API_TOKEN", cfg.ReplicateToken)
	cfg.ReplicateBaseURL = getEnv("REPLICATE_BASE_URL", cfg.ReplicateBaseURL)

	return env.err()
}

// Validate reports the first set of invalid fields. Access tokens are not
// checked here: generation fails on first use when its token is absent.
func (c Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s=%v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// TTLDuration parses TTL. Zero means cached embeddings never expire.
func (c CacheConfig) TTLDuration() (time.Duration, error) {
	if strings.TrimSpace(c.TTL) == "" {
		return 0, nil
	}
	ttl, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, fmt.Errorf("parse cache ttl %q: %w", c.TTL, err)
	}
	return ttl, nil
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

type envErrors []error

func (e *envErrors) intVar(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		*e = append(*e, fmt.Errorf("%s=%q is not an integer", key, value))
		return fallback
	}
	return parsed
}

func (e *envErrors) boolVar(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		*e = append(*e, fmt.Errorf("%s=%q is not a boolean", key, value))
		return fallback
	}
	return parsed
}

func (e envErrors) err() error {
	if len(e) == 0 {
		return nil
	}
	return fmt.Errorf("invalid environment: %w", errors.Join(e...))
}
