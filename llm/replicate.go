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

const (
	replicateStatusStarting   = "starting"
	replicateStatusProcessing = "processing"
	replicateStatusSucceeded  = "succeeded"
	replicateStatusFailed     = "failed"
	replicateStatusCanceled   = "canceled"
)

type replicateClient struct {
	baseURL      string
	model        string
	token        string
	client       *http.Client
	pollInterval time.Duration
}

type replicatePredictionRequest struct {
	Input replicateInput `json:"input"`
}

type replicateInput struct {
	Prompt string `json:"prompt"`
}

type replicatePrediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

// NewReplicateClient talks to the Replicate predictions API for an
// official model such as "ibm-granite/granite-3.3-8b-instruct".
func NewReplicateClient(opts Options) Client {
	baseURL := strings.TrimRight(opts.ReplicateBaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com"
	}

	return &replicateClient{
		baseURL: baseURL,
		model:   strings.Trim(opts.Model, "/"),
		token:   opts.ReplicateToken,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		pollInterval: time.Second,
	}
}

func (c *replicateClient) Generate(ctx context.Context, messages []Message) (string, error) {
	if c.token == "" {
		return "", fmt.Errorf("%w: set REPLICATE_API_TOKEN", ErrMissingToken)
	}
	if c.model == "" {
		return "", fmt.Errorf("%w: replicate needs an owner/name model", ErrMissingModel)
	}

	body, err := json.Marshal(replicatePredictionRequest{
		Input: replicateInput{Prompt: replicatePrompt(messages)},
	})
	if err != nil {
		return "", fmt.Errorf("marshal replicate request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/models/%s/predictions", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create replicate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "wait")

	prediction, err := c.do(req)
	if err != nil {
		return "", err
	}

	for prediction.Status == replicateStatusStarting || prediction.Status == replicateStatusProcessing {
		if prediction.URLs.Get == "" {
			return "", fmt.Errorf("replicate prediction %s is %s without a status URL", prediction.ID, prediction.Status)
		}

		timer := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}

		pollReq, err := http.NewRequestWithContext(ctx, http.MethodGet, prediction.URLs.Get, nil)
		if err != nil {
			return "", fmt.Errorf("create replicate poll request: %w", err)
		}
		prediction, err = c.do(pollReq)
		if err != nil {
			return "", err
		}
	}

	switch prediction.Status {
	case replicateStatusSucceeded:
		return decodeReplicateOutput(prediction.Output)
	case replicateStatusFailed, replicateStatusCanceled:
		return "", fmt.Errorf("replicate prediction %s %s: %v", prediction.ID, prediction.Status, prediction.Error)
	default:
		return "", fmt.Errorf("replicate prediction %s returned unknown status %q", prediction.ID, prediction.Status)
	}
}

func (c *replicateClient) do(req *http.Request) (*replicatePrediction, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)

	var prediction replicatePrediction
	if err := doJSON(c.client, req, "replicate", &prediction); err != nil {
		return nil, err
	}
	return &prediction, nil
}

// decodeReplicateOutput accepts both a plain string and the token list that
// language models stream into.
func decodeReplicateOutput(raw json.RawMessage) (string, error) {
	var text string
	if len(raw) > 0 && string(raw) != "null" {
		var parts []string
		if err := json.Unmarshal(raw, &parts); err == nil {
			text = strings.Join(parts, "")
		} else if err := json.Unmarshal(raw, &text); err != nil {
			return "", fmt.Errorf("decode replicate output: %w", err)
		}
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("replicate: %w", ErrEmptyCompletion)
	}
	return text, nil
}

// replicatePrompt flattens messages into "Role: content" lines. A single
// system message still carries its "System: " prefix.
func replicatePrompt(messages []Message) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		var prefix string
		switch msg.Role {
		case RoleSystem:
			prefix = "System"
		case RoleAssistant:
			prefix = "AI"
		default:
			prefix = "Human"
		}
		lines = append(lines, prefix+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}
