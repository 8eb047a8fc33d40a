package chat

import "errors"

// ErrInvalidInput marks caller-correctable failures such as a blank question.
var ErrInvalidInput = errors.New("invalid input")

const (
	StageEmbed    = "embed question"
	StageRetrieve = "vector search"
	StageGenerate = "llm generate"
)

// UpstreamError reports a failed embedding, retrieval or generation call.
// Upstream failures are never retried.
type UpstreamError struct {
	Stage string
	Err   error
}

func (e *UpstreamError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
