package domain

import "context"

// Document is one row of the knowledge base. Position is its 0-based index
// in the corpus store and doubles as its address in the vector index.
type Document struct {
	Position int
	Text     string
}

// Neighbor is a single vector index hit.
type Neighbor struct {
	Position int
	Distance float64
}

// RetrievalResult represents a matching document with its squared L2 distance
// to the query. Lower is closer.
type RetrievalResult struct {
	Document Document
	Distance float64
}

// Normalizer maps raw text to its canonical token form.
type Normalizer interface {
	Normalize(text string) string
}

// Embedder converts normalized text into dense vectors.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex supports exact k-nearest-neighbour search over document embeddings.
type VectorIndex interface {
	Build(vectors [][]float32) error
	Search(query []float32, k int) ([]Neighbor, error)
	Len() int
	Dimension() int
}

// Retriever returns the documents closest to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]RetrievalResult, error)
}

// Summarizer describes an ingested corpus in a single line.
type Summarizer interface {
	Summarize(normalized []string, maxTerms int) (string, error)
}
