// Package chat answers guest questions by retrieving knowledge base passages
// and handing them to a language model with the Archipelago system prompt.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/fabfab/archipelago-assistant/embeddings"
	"github.com/fabfab/archipelago-assistant/llm"
)

// TopK is the number of passages retrieved for every question.
const TopK = 3

// Retriever returns the k Documents nearest to an embedding, most similar
// first.
type Retriever interface {
	SimilarDocuments(ctx context.Context, embedding []float32, k int) ([]Match, error)
}

// Answerer is implemented by Pipeline and consumed by the entry points.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// Pipeline runs embed, retrieve, render and generate for one question. It
// holds no per-request state and is safe for concurrent use when its
// collaborators are.
type Pipeline struct {
	embedder  embeddings.Embedder
	retriever Retriever
	generator llm.Client
	prompt    PromptTemplate
	logger    *log.Logger
}

type Option func(*Pipeline)

// WithPrompt replaces ArchipelagoPrompt.
func WithPrompt(prompt PromptTemplate) Option {
	return func(p *Pipeline) {
		p.prompt = prompt
	}
}

func NewPipeline(embedder embeddings.Embedder, retriever Retriever, generator llm.Client, logger *log.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = &log.DefaultLogger
	}

	p := &Pipeline{
		embedder:  embedder,
		retriever: retriever,
		generator: generator,
		prompt:    ArchipelagoPrompt,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ Answerer = (*Pipeline)(nil)

// Answer returns the model output for question verbatim. Blank questions
// fail with ErrInvalidInput before any collaborator is called; collaborator
// failures are returned as *UpstreamError.
func (p *Pipeline) Answer(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("%w: question cannot be empty", ErrInvalidInput)
	}
	if p.embedder == nil {
		return "", &UpstreamError{Stage: StageEmbed, Err: errors.New("embedder is not configured")}
	}
	if p.retriever == nil {
		return "", &UpstreamError{Stage: StageRetrieve, Err: errors.New("vector store is not configured")}
	}
	if p.generator == nil {
		return "", &UpstreamError{Stage: StageGenerate, Err: errors.New("llm client is not configured")}
	}

	start := time.Now()

	vector, err := embeddings.EmbedOne(ctx, p.embedder, question)
	if err != nil {
		return "", &UpstreamError{Stage: StageEmbed, Err: err}
	}

	matches, err := p.retriever.SimilarDocuments(ctx, vector, TopK)
	if err != nil {
		return "", &UpstreamError{Stage: StageRetrieve, Err: err}
	}
	if len(matches) > TopK {
		matches = matches[:TopK]
	}
	if len(matches) == 0 {
		p.logger.Warn().Msg("no knowledge base passages matched the question")
	}

	prompt := p.prompt.Render(JoinContext(matches), question)

	answer, err := p.generator.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: prompt},
	})
	if err != nil {
		return "", &UpstreamError{Stage: StageGenerate, Err: err}
	}

	entry := p.logger.Info().Int("passages", len(matches)).Dur("elapsed", time.Since(start))
	if len(matches) > 0 {
		entry = entry.Float64("top_score", matches[0].Score).Str("top_source", matches[0].Source)
	}
	entry.Msg("answered question")

	return answer, nil
}
