package embedding

import (
	"context"
	"fmt"

	"ragqa/internal/domain"
)

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder = domain.Embedder

// EmbedAll embeds texts in batches of batchSize and checks that the provider
// returned one vector per input, all of the same width.
func EmbedAll(ctx context.Context, e Embedder, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = len(texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		vecs, err := e.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, domain.Unavailable(e.Name(), fmt.Errorf("returned %d vectors for %d inputs", len(vecs), end-start))
		}
		out = append(out, vecs...)
	}
	for i, v := range out {
		if len(v) != len(out[0]) {
			return nil, domain.Unavailable(e.Name(), fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), len(out[0])))
		}
	}
	return out, nil
}
