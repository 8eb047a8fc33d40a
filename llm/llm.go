package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/fabfab/archipelago-assistant/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrMissingToken is returned by Generate when the provider's access token
// was not configured.
var ErrMissingToken = errors.New("llm access token not configured")

// ErrMissingModel is returned by Generate when no model name was configured.
var ErrMissingModel = errors.New("llm model not configured")

// ErrEmptyCompletion is returned when a provider answers with blank text.
var ErrEmptyCompletion = errors.New("llm returned an empty completion")

type Message struct {
	Role    string
	Content string
}

type Client interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

type Options struct {
	Provider string
	Model    string

	OllamaHost       string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	ReplicateToken   string
	ReplicateBaseURL string
}

// NewClient builds the configured generation client. Credentials are
// checked on the first Generate call.
func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Provider:         cfg.LLM.Provider,
		Model:            cfg.LLM.Model,
		OllamaHost:       cfg.OllamaHost,
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		ReplicateToken:   cfg.ReplicateToken,
		ReplicateBaseURL: cfg.ReplicateBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		return NewOpenAIClient(opts), nil
	case config.ProviderReplicate:
		return NewReplicateClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}
