package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

// countingEmbedder maps a text to {len(text), calls} and records batch sizes.
type countingEmbedder struct {
	batches  [][]string
	prepared int
	short    bool
	err      error
}

func (c *countingEmbedder) Name() string                  { return "counting" }
func (c *countingEmbedder) Prepare(corpus []string) error { c.prepared++; return nil }
func (c *countingEmbedder) Dimension() int                { return 2 }

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.batches = append(c.batches, append([]string(nil), texts...))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), float32(len(c.batches))}
	}
	if c.short {
		return out[:len(out)-1], nil
	}
	return out, nil
}

func TestEmbedAll(t *testing.T) {
	ctx := context.Background()

	t.Run("Batches preserve input order", func(t *testing.T) {
		e := &countingEmbedder{}

		vecs, err := EmbedAll(ctx, e, []string{"a", "bb", "ccc", "dddd", "eeeee"}, 2)

		require.NoError(t, err)
		require.Len(t, vecs, 5)
		assert.Len(t, e.batches, 3)
		for i, v := range vecs {
			assert.Equal(t, float32(i+1), v[0])
		}
	})

	t.Run("Zero batch size sends everything at once", func(t *testing.T) {
		e := &countingEmbedder{}

		_, err := EmbedAll(ctx, e, []string{"a", "b", "c"}, 0)

		require.NoError(t, err)
		assert.Len(t, e.batches, 1)
	})

	t.Run("Empty input makes no calls", func(t *testing.T) {
		e := &countingEmbedder{}

		vecs, err := EmbedAll(ctx, e, nil, 8)

		require.NoError(t, err)
		assert.Empty(t, vecs)
		assert.Empty(t, e.batches)
	})

	t.Run("Short provider response is a provider failure", func(t *testing.T) {
		_, err := EmbedAll(ctx, &countingEmbedder{short: true}, []string{"a", "b"}, 2)

		assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	})

	t.Run("Provider errors propagate", func(t *testing.T) {
		cause := domain.Unavailable("counting", errors.New("down"))

		_, err := EmbedAll(ctx, &countingEmbedder{err: cause}, []string{"a"}, 1)

		assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	})
}

func TestWithCache(t *testing.T) {
	ctx := context.Background()

	t.Run("Disabled cache returns the embedder itself", func(t *testing.T) {
		e := &countingEmbedder{}
		assert.Same(t, e, WithCache(e, 0, time.Minute))
	})

	t.Run("Repeated texts hit the cache", func(t *testing.T) {
		e := &countingEmbedder{}
		cached := WithCache(e, 16, time.Minute)

		first, err := cached.Embed(ctx, []string{"trail"})
		require.NoError(t, err)
		second, err := cached.Embed(ctx, []string{"trail"})
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Len(t, e.batches, 1)
	})

	t.Run("Only misses reach the provider, order is preserved", func(t *testing.T) {
		e := &countingEmbedder{}
		cached := WithCache(e, 16, time.Minute)
		_, err := cached.Embed(ctx, []string{"bb"})
		require.NoError(t, err)

		vecs, err := cached.Embed(ctx, []string{"a", "bb", "ccc"})

		require.NoError(t, err)
		assert.Equal(t, []string{"a", "ccc"}, e.batches[1])
		assert.Equal(t, float32(1), vecs[0][0])
		assert.Equal(t, float32(2), vecs[1][0])
		assert.Equal(t, float32(3), vecs[2][0])
	})

	t.Run("Callers cannot corrupt cached vectors", func(t *testing.T) {
		cached := WithCache(&countingEmbedder{}, 16, time.Minute)
		vecs, err := cached.Embed(ctx, []string{"x"})
		require.NoError(t, err)

		vecs[0][0] = 99

		again, err := cached.Embed(ctx, []string{"x"})
		require.NoError(t, err)
		assert.Equal(t, float32(1), again[0][0])
	})

	t.Run("Prepare purges the cache", func(t *testing.T) {
		e := &countingEmbedder{}
		cached := WithCache(e, 16, time.Minute)
		_, err := cached.Embed(ctx, []string{"x"})
		require.NoError(t, err)

		require.NoError(t, cached.Prepare([]string{"x"}))
		_, err = cached.Embed(ctx, []string{"x"})
		require.NoError(t, err)

		assert.Equal(t, 1, e.prepared)
		assert.Len(t, e.batches, 2)
	})

	t.Run("Errors are not cached", func(t *testing.T) {
		e := &countingEmbedder{err: errors.New("down")}
		cached := WithCache(e, 16, time.Minute)

		_, err := cached.Embed(ctx, []string{"x"})
		assert.Error(t, err)

		e.err = nil
		vecs, err := cached.Embed(ctx, []string{"x"})
		require.NoError(t, err)
		assert.Len(t, vecs, 1)
	})
}
