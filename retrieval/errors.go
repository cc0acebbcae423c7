package retrieval

import (
	"errors"
	"fmt"

	"github.com/poiesic/sibyl/core"
)

var (
	// ErrGraphStoreRequired is returned when a graph store is not provided.
	ErrGraphStoreRequired = errors.New("graph store required")

	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrSourceTimeout is reported when a source does not answer within its timeout.
	ErrSourceTimeout = errors.New("source timed out")

	// ErrSourceBusy is reported when every search worker is taken.
	ErrSourceBusy = errors.New("no search worker available")
)

// SourceError records the failure of one relevance source. Retrieval carries
// on with the other source.
type SourceError struct {
	Kind core.SourceKind
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s source: %v", e.Kind, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
