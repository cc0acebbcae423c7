package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/sibyl/ai"
	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/retry"
	"github.com/poiesic/sibyl/storage"
)

// embeddingProcessor embeds chunks into the vector store.
type embeddingProcessor struct {
	store      storage.VectorStore
	embedder   ai.Embedder
	batchSize  int
	attempts   int
	retryDelay time.Duration
	logger     *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

// newEmbeddingProcessor creates a new embedding processor.
func newEmbeddingProcessor(store storage.VectorStore, embedder ai.Embedder, batchSize, attempts int, retryDelay time.Duration, logger *slog.Logger) (*embeddingProcessor, error) {
	if store == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		store:      store,
		embedder:   embedder,
		batchSize:  max(batchSize, 1),
		attempts:   max(attempts, 1),
		retryDelay: retryDelay,
		logger:     logger.With("processor", "embeddings"),
	}, nil
}

// process generates one embedding per chunk and stores them together.
func (ep *embeddingProcessor) process(ctx context.Context, doc core.DocumentID, chunks []core.Chunk) (core.IngestionStats, error) {
	ep.logger.Debug("embedding chunks", "document_id", doc, "chunks", len(chunks))

	embeddings := make([]*core.Embedding, 0, len(chunks))
	for start := 0; start < len(chunks); start += ep.batchSize {
		batch := chunks[start:min(start+ep.batchSize, len(chunks))]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		var vectors [][]float32
		err := retry.RetryWithBackoff(ctx, func() error {
			var err error
			vectors, err = ep.embedder.EmbedTexts(ctx, texts)
			return retryable(err)
		}, ep.attempts, ep.retryDelay)
		if err != nil {
			ep.logger.Error("error generating embeddings", "document_id", doc, "err", err)
			return core.IngestionStats{}, err
		}
		if len(vectors) != len(batch) {
			return core.IngestionStats{}, fmt.Errorf("embedding result mismatch. expected %d, received %d", len(batch), len(vectors))
		}

		for i, c := range batch {
			embeddings = append(embeddings, &core.Embedding{
				ID:         core.ChunkID(doc, c.Index),
				DocumentID: doc,
				ChunkIndex: c.Index,
				Text:       c.Text,
				Vector:     vectors[i],
			})
		}
	}

	if err := ep.store.UpsertEmbeddings(ctx, doc, embeddings); err != nil {
		return core.IngestionStats{}, err
	}
	return core.IngestionStats{Embeddings: len(embeddings)}, nil
}

func (ep *embeddingProcessor) purge(ctx context.Context, doc core.DocumentID) error {
	removed, err := ep.store.DeleteDocument(ctx, doc)
	if err == nil && removed > 0 {
		ep.logger.Debug("purged embeddings", "document_id", doc, "removed", removed)
	}
	return err
}
