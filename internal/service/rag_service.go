package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ragqa/internal/corpus"
	"ragqa/internal/domain"
	"ragqa/internal/embedding"
)

// ErrNotIngested is returned by Retrieve before a corpus has been ingested.
var ErrNotIngested = errors.New("corpus not ingested")

// RAGService owns the corpus and its vector index and answers nearest
// document queries against them.
type RAGService struct {
	normalizer   domain.Normalizer
	embedder     domain.Embedder
	index        domain.VectorIndex
	summarizer   domain.Summarizer
	logger       *slog.Logger
	batchSize    int
	summaryTerms int

	mu    sync.RWMutex
	store *corpus.Store
}

// NewRAGService wires the retrieval pipeline. summarizer may be nil.
func NewRAGService(normalizer domain.Normalizer, embedder domain.Embedder, index domain.VectorIndex, summarizer domain.Summarizer, logger *slog.Logger, batchSize int) *RAGService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RAGService{
		normalizer:   normalizer,
		embedder:     embedder,
		index:        index,
		summarizer:   summarizer,
		logger:       logger,
		batchSize:    batchSize,
		summaryTerms: 5,
	}
}

// Ingest normalizes and embeds every document and rebuilds the index. It
// returns a one-line overview of the corpus.
func (s *RAGService) Ingest(ctx context.Context, store *corpus.Store) (string, error) {
	start := time.Now()
	texts := store.Texts()
	normalized := make([]string, len(texts))
	for i, t := range texts {
		normalized[i] = s.normalizer.Normalize(t)
	}
	if err := s.embedder.Prepare(normalized); err != nil {
		return "", fmt.Errorf("prepare %s embedder: %w", s.embedder.Name(), err)
	}
	vectors, err := embedding.EmbedAll(ctx, s.embedder, normalized, s.batchSize)
	if err != nil {
		return "", fmt.Errorf("embed corpus: %w", err)
	}
	if err := s.index.Build(vectors); err != nil {
		return "", fmt.Errorf("build index: %w", err)
	}

	s.mu.Lock()
	s.store = store
	s.mu.Unlock()

	summary := fmt.Sprintf("%d documents", store.Len())
	if s.summarizer != nil {
		if summary, err = s.summarizer.Summarize(normalized, s.summaryTerms); err != nil {
			return "", err
		}
	}
	s.logger.Info("corpus indexed",
		"documents", store.Len(),
		"embedder", s.embedder.Name(),
		"dimension", s.index.Dimension(),
		"elapsed", time.Since(start).String())
	return summary, nil
}

// Retrieve returns up to k documents ordered by ascending distance to the
// query, exactly as the index ranks them.
func (s *RAGService) Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		return nil, domain.InvalidArgument("k must be positive, got %d", k)
	}
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil {
		return nil, ErrNotIngested
	}
	if s.index.Len() == 0 {
		return []domain.RetrievalResult{}, nil
	}

	vecs, err := s.embedder.Embed(ctx, []string{s.normalizer.Normalize(query)})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, domain.Unavailable(s.embedder.Name(), fmt.Errorf("returned %d vectors for 1 query", len(vecs)))
	}
	neighbors, err := s.index.Search(vecs[0], k)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RetrievalResult, 0, len(neighbors))
	for _, n := range neighbors {
		doc, err := store.Get(n.Position)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.RetrievalResult{Document: doc, Distance: n.Distance})
	}
	return out, nil
}

// Len returns the number of ingested documents.
func (s *RAGService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return 0
	}
	return s.store.Len()
}
