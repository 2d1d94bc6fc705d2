package ai

import (
	"fmt"

	appErr "github.com/H0NEYP0T-466/RAGbot/internal/pkg/errors"
)

// ErrUnavailable is returned by providers that are missing credentials.
var ErrUnavailable = fmt.Errorf("ai provider not configured: %w", appErr.ErrUnavailable)

// GenerationError wraps any failure of the chat collaborator: transport,
// auth, model errors and timeouts.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate response: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// BatchError names the first input of a batch that could not be embedded.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("embed input %d: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
