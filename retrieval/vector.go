package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/sibyl/ai"
	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/storage"
)

const defaultSimilarityThreshold = 0.7

// VectorOption configures a VectorSource.
type VectorOption func(*VectorSource) error

// WithSimilarityThreshold sets the minimum cosine similarity of a hit.
func WithSimilarityThreshold(threshold float32) VectorOption {
	return func(s *VectorSource) error {
		if threshold < 0 || threshold > 1 {
			return fmt.Errorf("similarity threshold must be in [0,1], got %v", threshold)
		}
		s.threshold = threshold
		return nil
	}
}

// WithVectorLogger sets a custom logger.
func WithVectorLogger(logger *slog.Logger) VectorOption {
	return func(s *VectorSource) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// VectorSource answers queries by embedding similarity over stored chunks.
type VectorSource struct {
	store     storage.VectorStore
	docs      storage.DocumentRepository
	embedder  ai.Embedder
	threshold float32
	logger    *slog.Logger
}

var _ Source = (*VectorSource)(nil)

// NewVectorSource creates a vector relevance source.
func NewVectorSource(store storage.VectorStore, docs storage.DocumentRepository, embedder ai.Embedder, opts ...VectorOption) (*VectorSource, error) {
	if store == nil {
		return nil, ErrVectorStoreRequired
	}
	if docs == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	s := &VectorSource{
		store:     store,
		docs:      docs,
		embedder:  embedder,
		threshold: defaultSimilarityThreshold,
		logger:    slog.Default().With("component", "vector-source"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Kind returns core.SourceVector.
func (s *VectorSource) Kind() core.SourceKind {
	return core.SourceVector
}

// Search returns up to limit chunks whose similarity to query meets the threshold.
func (s *VectorSource) Search(ctx context.Context, query string, limit int) ([]core.Evidence, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "err", err)
		return nil, err
	}

	// Over-fetch so that uncommitted documents do not starve the result
	hits, err := s.store.FindSimilar(ctx, vector, s.threshold, limit*2)
	if err != nil {
		return nil, err
	}

	filter := newCommitted(s.docs)
	evidence := make([]core.Evidence, 0, min(limit, len(hits)))
	for _, hit := range hits {
		if len(evidence) >= limit {
			break
		}
		emb := hit.Embedding
		doc, err := filter.lookup(ctx, emb.DocumentID)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}
		evidence = append(evidence, core.NewEvidence(core.SourceVector, emb.Text, float64(hit.Score), core.Origin{
			DocumentID: emb.DocumentID,
			ItemID:     emb.ID,
			Title:      doc.Title,
		}))
	}

	s.logger.Debug("vector search", "hits", len(hits), "evidence", len(evidence))
	return evidence, nil
}
