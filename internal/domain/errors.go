package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable means an embedding or generation backend could not be
	// loaded or reached.
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrGenerationFailed    = errors.New("generation failed")
	ErrCorpusLoad          = errors.New("corpus load error")
)

// GenerationError reports a failed completion. Only the prompt length is kept
// so the prompt itself never ends up in logs.
type GenerationError struct {
	PromptLen int
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (prompt length %d): %v", e.PromptLen, e.Err)
}

func (e *GenerationError) Unwrap() []error {
	return []error{ErrGenerationFailed, e.Err}
}

// Unavailable wraps err so that it matches ErrProviderUnavailable.
func Unavailable(provider string, err error) error {
	return fmt.Errorf("%s: %w: %w", provider, ErrProviderUnavailable, err)
}

// InvalidArgument builds an error matching ErrInvalidArgument.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
