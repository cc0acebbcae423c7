package reembed

import "errors"

var (
	// ErrVectorStoreRequired is returned when no vector store is supplied.
	ErrVectorStoreRequired = errors.New("vector store is required")

	// ErrEmbedderRequired is returned when no embedder is supplied.
	ErrEmbedderRequired = errors.New("embedder is required")
)
