// Package llm provides clients for the external text-generation service.
// The engine owns prompt construction and error classification only; the
// service itself is opaque.
package llm

import (
	"context"
	"errors"
)

// ErrGenerationFailed classifies any transport or service error from the
// text-generation call. It is retryable at the orchestrator level with
// backoff, up to the configured transport-retry cap.
var ErrGenerationFailed = errors.New("text generation failed")

// Request is one generation call.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Client is the minimal interface the engine uses to call a text-generation
// provider. Implementations make exactly one outbound call per Generate.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}
