package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerationError(t *testing.T) {
	t.Run("Matches sentinel and cause", func(t *testing.T) {
		cause := errors.New("out of memory")
		err := fmt.Errorf("answer: %w", &GenerationError{PromptLen: 42, Err: cause})

		assert.ErrorIs(t, err, ErrGenerationFailed)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "prompt length 42")
	})

	t.Run("Exposes prompt length through errors.As", func(t *testing.T) {
		err := fmt.Errorf("wrapped: %w", &GenerationError{PromptLen: 7, Err: errors.New("boom")})

		var genErr *GenerationError
		assert.True(t, errors.As(err, &genErr))
		assert.Equal(t, 7, genErr.PromptLen)
	})
}

func TestUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable("ollama", cause)

	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "ollama")
}

func TestInvalidArgument(t *testing.T) {
	err := InvalidArgument("k must be positive, got %d", 0)

	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "got 0")
}
