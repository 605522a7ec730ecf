// Package llm holds the narrow text-generation contract the extraction path
// depends on, the circuit breaker protecting it, and the background
// extraction service that turns conversation transcripts into graph merges.
package llm

import (
	"context"
	"errors"
)

// TextGenerator is the capability the host injects: generate text for a
// fully-built prompt, return the raw response or fail. Implementations that
// cannot generate in the current context (no model attached, feature
// disabled) return ErrUnavailable rather than a generic error so callers can
// distinguish "down" from "not here".
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrUnavailable signals that text generation is not available in this
// context. It is an expected outcome, not a failure: extraction degrades to
// a no-op for the round.
var ErrUnavailable = errors.New("text generation unavailable in this context")
