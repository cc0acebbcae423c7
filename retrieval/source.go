package retrieval

import (
	"context"
	"errors"

	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/storage"
)

// Source is a relevance source adapter. Search returns evidence with scores
// already normalized to [0,1], best first.
type Source interface {
	Kind() core.SourceKind
	Search(ctx context.Context, query string, limit int) ([]core.Evidence, error)
}

// committed resolves whether documents have finished ingestion. A document is
// visible only once its registry entry exists. Results are memoized for the
// lifetime of one search.
type committed struct {
	docs storage.DocumentRepository
	seen map[core.DocumentID]*core.Document
}

func newCommitted(docs storage.DocumentRepository) *committed {
	return &committed{
		docs: docs,
		seen: make(map[core.DocumentID]*core.Document),
	}
}

// lookup returns the registered document, or nil if it is not committed.
func (c *committed) lookup(ctx context.Context, id core.DocumentID) (*core.Document, error) {
	if doc, ok := c.seen[id]; ok {
		return doc, nil
	}
	doc, err := c.docs.GetDocument(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		doc, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.seen[id] = doc
	return doc, nil
}
