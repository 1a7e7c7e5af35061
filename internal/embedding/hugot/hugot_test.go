package hugot

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalModelPath(t *testing.T) {
	got := localModelPath("models", "sentence-transformers/all-MiniLM-L6-v2")

	assert.Equal(t, filepath.Join("models", "sentence-transformers_all-MiniLM-L6-v2"), got)
}

func TestNewEmbedderDefaults(t *testing.T) {
	e := NewEmbedder(Config{})

	assert.Equal(t, "sentence-transformers/all-MiniLM-L6-v2", e.cfg.Model)
	assert.Equal(t, "./models", e.cfg.ModelDir)
	assert.Equal(t, "onnx/model.onnx", e.cfg.OnnxFile)
	assert.Equal(t, 0, e.Dimension())
	assert.NoError(t, e.Close())
}

func TestEmbedEmptyInputSkipsModel(t *testing.T) {
	e := NewEmbedder(Config{ModelDir: t.TempDir()})

	vecs, err := e.Embed(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestEmbedderWithModel(t *testing.T) {
	if testing.Short() {
		t.Skip("downloads a sentence-transformer model")
	}
	e := NewEmbedder(Config{ModelDir: filepath.Join("..", "..", "..", "models")})
	t.Cleanup(func() { _ = e.Close() })
	require.NoError(t, e.Prepare(nil))

	vecs, err := e.Embed(context.Background(), []string{
		"hiking route near pidriš",
		"trail walk close to pidriš village",
		"local cuisine trout",
	})

	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, 384, e.Dimension())
	assert.Greater(t, cosine(vecs[0], vecs[1]), cosine(vecs[0], vecs[2]))
	for i, v := range vecs {
		assert.InDelta(t, 1.0, norm(v), 1e-3, "vector %d is not unit length", i)
	}
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
