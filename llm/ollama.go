package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultOllamaHost = "http://localhost:11434"

type ollamaClient struct {
	endpoint string
	model    string
	client   *http.Client
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Model      string        `json:"model"`
	Message    ollamaMessage `json:"message"`
	Done       bool          `json:"done"`
	DoneReason string        `json:"done_reason"`
	Error      string        `json:"error"`
}

// NewOllamaClient calls a local Ollama server's /api/chat endpoint with
// streaming disabled.
func NewOllamaClient(opts Options) Client {
	host := strings.TrimRight(strings.TrimSpace(opts.OllamaHost), "/")
	if host == "" {
		host = defaultOllamaHost
	}

	return &ollamaClient{
		endpoint: host + "/api/chat",
		model:    strings.TrimSpace(opts.Model),
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *ollamaClient) Generate(ctx context.Context, messages []Message) (string, error) {
	if c.model == "" {
		return "", fmt.Errorf("%w: set LLM_MODEL to a pulled ollama model", ErrMissingModel)
	}

	chat := make([]ollamaMessage, 0, len(messages))
	for _, msg := range messages {
		chat = append(chat, ollamaMessage{Role: msg.Role, Content: msg.Content})
	}
	body, err := json.Marshal(ollamaChatRequest{Model: c.model, Messages: chat})
	if err != nil {
		return "", fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var reply ollamaChatResponse
	if err := doJSON(c.client, req, "ollama", &reply); err != nil {
		return "", err
	}

	switch {
	case reply.Error != "":
		return "", fmt.Errorf("ollama model %s: %s", c.model, reply.Error)
	case !reply.Done:
		return "", fmt.Errorf("ollama model %s returned a partial response", c.model)
	case strings.TrimSpace(reply.Message.Content) == "":
		return "", fmt.Errorf("ollama model %s (done_reason %q): %w", c.model, reply.DoneReason, ErrEmptyCompletion)
	}
	return reply.Message.Content, nil
}
