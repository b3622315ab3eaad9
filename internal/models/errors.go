// ABOUTME: Error taxonomy shared by every RAG component
// ABOUTME: Sentinels are matched with errors.Is; constructors wrap a formatted reason
package models

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad caller input: empty text, wrong dimension, invalid top_k
	ErrValidation = errors.New("validation error")
	// ErrEmptyInput is the validation reason for blank text
	ErrEmptyInput = fmt.Errorf("%w: empty input", ErrValidation)
	// ErrTransientIO marks a network failure or timeout that may succeed on retry
	ErrTransientIO = errors.New("transient io error")
	// ErrNotFound marks a missing id or file
	ErrNotFound = errors.New("not found")
	// ErrState marks an operation on a component in the wrong lifecycle state
	ErrState = errors.New("invalid state")
	// ErrEmbeddingFailed is returned once the embedding retry budget is exhausted
	ErrEmbeddingFailed = errors.New("embedding failed")
	// ErrGenerationFailed is returned once the generation retry budget is exhausted
	ErrGenerationFailed = errors.New("generation failed")
	// ErrCancelled is returned when the caller cancelled an in-flight call
	ErrCancelled = errors.New("cancelled")
)

// Validationf wraps ErrValidation with a formatted reason
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with a formatted reason
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Statef wraps ErrState with a formatted reason
func Statef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrState, fmt.Sprintf(format, args...))
}
