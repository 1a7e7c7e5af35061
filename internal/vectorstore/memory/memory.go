package memory

import (
	"sort"
	"sync"

	"ragqa/internal/domain"
)

// Index is an exact in-memory nearest-neighbour index using squared
// Euclidean distance. Entry i corresponds to corpus position i.
type Index struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float32
}

func NewIndex() *Index { return &Index{} }

// Build replaces the index contents with copies of vectors. An empty input
// yields an empty index. Zero-width vectors are allowed as long as every
// vector has width zero; all distances are then 0.
func (s *Index) Build(vectors [][]float32) error {
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	owned := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return domain.InvalidArgument("vector dimension mismatch at position %d: %d != %d", i, len(v), dim)
		}
		owned[i] = append([]float32(nil), v...)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dim
	s.vectors = owned
	return nil
}

// Search returns up to k positions ordered by ascending distance, ties by
// ascending position.
func (s *Index) Search(vector []float32, k int) ([]domain.Neighbor, error) {
	if k <= 0 {
		return nil, domain.InvalidArgument("k must be positive, got %d", k)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.vectors) == 0 {
		return []domain.Neighbor{}, nil
	}
	if len(vector) != s.dimension {
		return nil, domain.InvalidArgument("query dimension %d != index dimension %d", len(vector), s.dimension)
	}
	hits := make([]domain.Neighbor, len(s.vectors))
	for i, v := range s.vectors {
		hits[i] = domain.Neighbor{Position: i, Distance: squaredL2(vector, v)}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Distance < hits[b].Distance })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// Len returns the number of indexed vectors.
func (s *Index) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

// Dimension returns the vector width, 0 for an empty index.
func (s *Index) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}
