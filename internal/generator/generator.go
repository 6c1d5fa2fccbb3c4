// Package generator turns endpoint signatures into markdown prose through a
// hosted language model.
package generator

import (
	"context"
	"fmt"

	"docagent/internal/endpoint"
)

// Request is everything a generator needs to document one endpoint.
type Request struct {
	Signature endpoint.Signature
	Project   string
	// Existing is the previous body when the section is being refreshed.
	Existing string
}

// Generator produces the markdown body for one endpoint. Calls for the same
// request are safe to repeat.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Func adapts a plain function to Generator.
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// GenerationError reports a failed generation for one endpoint.
type GenerationError struct {
	Key   string
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for %s: %v", e.Key, e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// NewGenerationError wraps cause unless it already is a GenerationError.
func NewGenerationError(key string, cause error) *GenerationError {
	if ge, ok := cause.(*GenerationError); ok {
		return ge
	}
	return &GenerationError{Key: key, Cause: cause}
}
