package corpus

import (
	"ragqa/internal/domain"
)

// Store holds the documents in load order. It is read-only once built.
type Store struct {
	docs []domain.Document
}

// NewStore assigns positions to texts in the order given.
func NewStore(texts []string) *Store {
	docs := make([]domain.Document, len(texts))
	for i, t := range texts {
		docs[i] = domain.Document{Position: i, Text: t}
	}
	return &Store{docs: docs}
}

// Len returns the number of documents.
func (s *Store) Len() int { return len(s.docs) }

// Get returns the document at position i.
func (s *Store) Get(i int) (domain.Document, error) {
	if i < 0 || i >= len(s.docs) {
		return domain.Document{}, domain.InvalidArgument("document position %d out of range [0,%d)", i, len(s.docs))
	}
	return s.docs[i], nil
}

// Texts returns the document texts in position order.
func (s *Store) Texts() []string {
	out := make([]string, len(s.docs))
	for i, d := range s.docs {
		out[i] = d.Text
	}
	return out
}
