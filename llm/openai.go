package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type openAIClient struct {
	client *openai.Client
	model  string
	hasKey bool
}

// NewOpenAIClient targets the public OpenAI API unless OpenAIBaseURL points
// at a compatible gateway.
func NewOpenAIClient(opts Options) Client {
	cfg := openai.DefaultConfig(opts.OpenAIAPIKey)
	if base := strings.TrimRight(opts.OpenAIBaseURL, "/"); base != "" {
		cfg.BaseURL = base
	}

	return &openAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  strings.TrimSpace(opts.Model),
		hasKey: opts.OpenAIAPIKey != "",
	}
}

func (c *openAIClient) Generate(ctx context.Context, messages []Message) (string, error) {
	if !c.hasKey {
		return "", fmt.Errorf("%w: set OPENAI_API_KEY", ErrMissingToken)
	}
	if c.model == "" {
		return "", fmt.Errorf("%w: set LLM_MODEL to an openai chat model", ErrMissingModel)
	}

	chat := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		chat = append(chat, openai.ChatCompletionMessage{Role: openAIRole(msg.Role), Content: msg.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: chat,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("openai API error (status %d): %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("create openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai model %s returned no choices", c.model)
	}

	choice := resp.Choices[0]
	if strings.TrimSpace(choice.Message.Content) == "" {
		return "", fmt.Errorf("openai model %s (finish_reason %q): %w", c.model, choice.FinishReason, ErrEmptyCompletion)
	}
	return choice.Message.Content, nil
}

func openAIRole(role string) string {
	switch role {
	case RoleSystem:
		return openai.ChatMessageRoleSystem
	case RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
