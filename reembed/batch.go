package reembed

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/poiesic/sibyl/ai"
	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/retry"
	"github.com/poiesic/sibyl/storage"
)

// BatchProcessor re-embeds batches of stored chunk embeddings.
type BatchProcessor struct {
	store          storage.VectorStore
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for each embedding call
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(store storage.VectorStore, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		store:          store,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		logger:         slog.Default().With("component", "reembed"),
	}
}

// Process embeds the chunk text of every embedding in the batch again and writes
// the normalized vectors back, one transaction per document. Embeddings without
// chunk text are left untouched. It returns the number of embeddings rewritten.
func (bp *BatchProcessor) Process(ctx context.Context, batch []*core.Embedding) (int, error) {
	todo := make([]*core.Embedding, 0, len(batch))
	for _, e := range batch {
		if e.Text == "" {
			bp.logger.Warn("embedding has no chunk text", "id", e.ID, "document", e.DocumentID)
			continue
		}
		todo = append(todo, e)
	}
	if len(todo) == 0 {
		return 0, nil
	}

	texts := make([]string, len(todo))
	for i, e := range todo {
		texts[i] = e.Text
	}

	var vectors [][]float32
	err := retry.RetryWithBackoff(ctx, func() error {
		var err error
		vectors, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}
	if len(vectors) != len(todo) {
		return 0, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(todo), len(vectors))
	}

	byDoc := make(map[core.DocumentID][]*core.Embedding)
	for i, e := range todo {
		byDoc[e.DocumentID] = append(byDoc[e.DocumentID], &core.Embedding{
			ID:         e.ID,
			DocumentID: e.DocumentID,
			ChunkIndex: e.ChunkIndex,
			Text:       e.Text,
			Vector:     NormalizeVector(vectors[i]),
		})
	}

	docs := make([]core.DocumentID, 0, len(byDoc))
	for doc := range byDoc {
		docs = append(docs, doc)
	}
	slices.Sort(docs)

	for _, doc := range docs {
		if err := bp.store.UpsertEmbeddings(ctx, doc, byDoc[doc]); err != nil {
			return 0, fmt.Errorf("failed to update embeddings of %s: %w", doc, err)
		}
	}
	return len(todo), nil
}
