package vectorstore

import (
	"ragqa/internal/domain"
	"ragqa/internal/vectorstore/memory"
)

// Storage is the vector index used by the retriever.
type Storage = domain.VectorIndex

// New returns an index for the given type. Only the exact in-memory index
// exists so far.
func New(kind string) (Storage, error) {
	switch kind {
	case "memory", "flat", "":
		return memory.NewIndex(), nil
	default:
		return nil, domain.InvalidArgument("unknown vector store: %s", kind)
	}
}
