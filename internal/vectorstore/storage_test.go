package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

func TestNew(t *testing.T) {
	for _, kind := range []string{"", "memory", "flat"} {
		s, err := New(kind)
		require.NoError(t, err, kind)
		assert.Equal(t, 0, s.Len())
	}

	_, err := New("qdrant")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
