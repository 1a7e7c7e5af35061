package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"ragqa/internal/domain"
)

// WithCache wraps e with an expiring LRU keyed by input text. Size or ttl of
// zero returns e unchanged.
func WithCache(e Embedder, size int, ttl time.Duration) Embedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next  Embedder
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) Name() string { return l.next.Name() }

// Prepare refits the wrapped embedder, so cached vectors are dropped.
func (l *lruEmbedder) Prepare(corpus []string) error {
	l.cache.Purge()
	return l.next.Prepare(corpus)
}

func (l *lruEmbedder) Dimension() int { return l.next.Dimension() }

func (l *lruEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingAt []int
	for i, t := range texts {
		if cached, ok := l.cache.Get(t); ok {
			out[i] = cloneEmbedding(cached)
			continue
		}
		missing = append(missing, t)
		missingAt = append(missingAt, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	vecs, err := l.next.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, domain.Unavailable(l.next.Name(), fmt.Errorf("returned %d vectors for %d inputs", len(vecs), len(missing)))
	}
	for j, v := range vecs {
		l.cache.Add(missing[j], cloneEmbedding(v))
		out[missingAt[j]] = v
	}
	return out, nil
}

func cloneEmbedding(values []float32) []float32 {
	if values == nil {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
