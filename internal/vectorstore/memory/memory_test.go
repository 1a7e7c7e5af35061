package memory

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

func positions(hits []domain.Neighbor) []int {
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.Position
	}
	return out
}

func TestIndexSearch(t *testing.T) {
	idx := NewIndex()
	require.NoError(t, idx.Build([][]float32{
		{0, 0},
		{3, 4},
		{1, 0},
		{0, 1},
	}))

	t.Run("Orders by ascending squared distance", func(t *testing.T) {
		hits, err := idx.Search([]float32{0, 0}, 4)

		require.NoError(t, err)
		assert.Equal(t, []int{0, 2, 3, 1}, positions(hits))
		assert.InDelta(t, 0.0, hits[0].Distance, 1e-6)
		assert.InDelta(t, 1.0, hits[1].Distance, 1e-6)
		assert.InDelta(t, 25.0, hits[3].Distance, 1e-4, "distance is squared L2")
	})

	t.Run("Ties are broken by ascending position", func(t *testing.T) {
		hits, err := idx.Search([]float32{1, 1}, 2)

		require.NoError(t, err)
		// positions 2 and 3 are equidistant from the query
		assert.Equal(t, []int{2, 3}, positions(hits))
	})

	t.Run("Returns at most k", func(t *testing.T) {
		hits, err := idx.Search([]float32{3, 4}, 1)

		require.NoError(t, err)
		assert.Equal(t, []int{1}, positions(hits))
	})

	t.Run("k larger than corpus returns everything", func(t *testing.T) {
		hits, err := idx.Search([]float32{0, 0}, 10)

		require.NoError(t, err)
		assert.Len(t, hits, 4)
	})

	t.Run("Non-positive k is invalid", func(t *testing.T) {
		_, err := idx.Search([]float32{0, 0}, 0)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		_, err = idx.Search([]float32{0, 0}, -3)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("Query dimension mismatch is invalid", func(t *testing.T) {
		_, err := idx.Search([]float32{0, 0, 0}, 1)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestIndexEmpty(t *testing.T) {
	idx := NewIndex()
	require.NoError(t, idx.Build(nil))

	hits, err := idx.Search([]float32{1, 2, 3}, 3)

	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, 0, idx.Dimension())
}

func TestIndexBuild(t *testing.T) {
	t.Run("Rejects inconsistent dimensions", func(t *testing.T) {
		err := NewIndex().Build([][]float32{{1, 2}, {1}})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("Accepts uniform zero width", func(t *testing.T) {
		idx := NewIndex()
		require.NoError(t, idx.Build([][]float32{{}, {}, {}}))

		hits, err := idx.Search([]float32{}, 2)

		require.NoError(t, err)
		assert.Equal(t, []int{0, 1}, positions(hits))
		assert.Zero(t, hits[0].Distance)
		assert.Equal(t, 0, idx.Dimension())
	})

	t.Run("Rejects mixed zero and non-zero width", func(t *testing.T) {
		err := NewIndex().Build([][]float32{{}, {1}})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("Owns a copy of the vectors", func(t *testing.T) {
		vecs := [][]float32{{1, 1}}
		idx := NewIndex()
		require.NoError(t, idx.Build(vecs))

		vecs[0][0] = 100

		hits, err := idx.Search([]float32{1, 1}, 1)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, hits[0].Distance, 1e-6)
	})

	t.Run("Rebuild replaces contents", func(t *testing.T) {
		idx := NewIndex()
		require.NoError(t, idx.Build([][]float32{{1}, {2}}))
		require.NoError(t, idx.Build([][]float32{{1, 2, 3}}))

		assert.Equal(t, 1, idx.Len())
		assert.Equal(t, 3, idx.Dimension())
	})
}

func TestIndexExactTies(t *testing.T) {
	idx := NewIndex()
	require.NoError(t, idx.Build([][]float32{
		{0.1, 0.2, 0.3},
		{0.3, 0.2, 0.1},
		{0.1, 0.2, 0.3},
	}))

	hits, err := idx.Search([]float32{0.2, 0.2, 0.2}, 3)

	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, positions(hits))
	assert.Equal(t, hits[0].Distance, hits[1].Distance)
	assert.Equal(t, hits[0].Distance, hits[2].Distance)
}

func TestIndexOrderingProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vecs := make([][]float32, 50)
	for i := range vecs {
		vecs[i] = []float32{rng.Float32(), rng.Float32(), rng.Float32()}
	}
	idx := NewIndex()
	require.NoError(t, idx.Build(vecs))

	for trial := 0; trial < 20; trial++ {
		q := []float32{rng.Float32(), rng.Float32(), rng.Float32()}
		k := 1 + rng.Intn(60)

		hits, err := idx.Search(q, k)

		require.NoError(t, err)
		assert.LessOrEqual(t, len(hits), min(k, len(vecs)))
		for i := 1; i < len(hits); i++ {
			assert.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
		}
	}
}
