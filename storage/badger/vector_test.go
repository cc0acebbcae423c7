package badger

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddingsFor(doc core.DocumentID, vectors ...[]float32) []*core.Embedding {
	out := make([]*core.Embedding, len(vectors))
	for i, v := range vectors {
		out[i] = &core.Embedding{
			ID:         core.ChunkID(doc, i),
			DocumentID: doc,
			ChunkIndex: i,
			Text:       fmt.Sprintf("%s chunk %d", doc, i),
			Vector:     v,
		}
	}
	return out
}

func TestVectorStore_FindSimilar(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)

	require.NoError(t, stores.Vectors.UpsertEmbeddings(ctx, "doc-1",
		embeddingsFor("doc-1", []float32{1, 0, 0}, []float32{0.7, 0.7, 0}, []float32{0, 0, 1})))

	t.Run("threshold and order", func(t *testing.T) {
		results, err := stores.Vectors.FindSimilar(ctx, []float32{2, 0, 0}, 0.5, 10)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.InDelta(t, 1.0, results[0].Score, 1e-6)
		assert.Equal(t, 0, results[0].Embedding.ChunkIndex)
		assert.Equal(t, 1, results[1].Embedding.ChunkIndex)
	})

	t.Run("limit", func(t *testing.T) {
		results, err := stores.Vectors.FindSimilar(ctx, []float32{1, 0, 0}, -1, 1)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("invalid query", func(t *testing.T) {
		_, err := stores.Vectors.FindSimilar(ctx, nil, 0, 1)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})
}

func TestVectorStore_DeleteDocument(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)

	require.NoError(t, stores.Vectors.UpsertEmbeddings(ctx, "doc-1", embeddingsFor("doc-1", []float32{1, 0}, []float32{0, 1})))
	require.NoError(t, stores.Vectors.UpsertEmbeddings(ctx, "doc-2", embeddingsFor("doc-2", []float32{1, 1})))

	removed, err := stores.Vectors.DeleteDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	has, err := stores.Vectors.HasDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, has)

	count, err := stores.Vectors.CountEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestVectorStore_ForEachBatch(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)

	vectors := make([][]float32, 7)
	for i := range vectors {
		vectors[i] = []float32{float32(i + 1), 1}
	}
	require.NoError(t, stores.Vectors.UpsertEmbeddings(ctx, "doc", embeddingsFor("doc", vectors...)))

	var sizes []int
	var ids []core.ID
	err := stores.Vectors.ForEachBatch(ctx, 0, 3, func(batch []*core.Embedding) error {
		sizes = append(sizes, len(batch))
		for _, e := range batch {
			ids = append(ids, e.ID)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 1}, sizes)
	require.Len(t, ids, 7)
	assert.True(t, slices.IsSorted(ids), "batches follow ID order")

	t.Run("resume after id", func(t *testing.T) {
		var rest []core.ID
		err := stores.Vectors.ForEachBatch(ctx, ids[3], 2, func(batch []*core.Embedding) error {
			for _, e := range batch {
				rest = append(rest, e.ID)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, ids[4:], rest)
	})

	t.Run("invalid batch size", func(t *testing.T) {
		err := stores.Vectors.ForEachBatch(ctx, 0, 0, func([]*core.Embedding) error { return nil })
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-6)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Equal(t, float32(0), cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestVectorStore_LargeDocument(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)

	// About 12MiB of chunk text, more than one badger transaction holds
	// with the default memtable size.
	text := strings.Repeat("a", 8<<10)
	embeddings := make([]*core.Embedding, 1500)
	for i := range embeddings {
		embeddings[i] = &core.Embedding{
			ID:         core.ChunkID("big", i),
			DocumentID: "big",
			ChunkIndex: i,
			Text:       text,
			Vector:     []float32{1, float32(i)},
		}
	}

	require.NoError(t, stores.Vectors.UpsertEmbeddings(ctx, "big", embeddings))
	count, err := stores.Vectors.CountEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(embeddings), count)

	removed, err := stores.Vectors.DeleteDocument(ctx, "big")
	require.NoError(t, err)
	assert.Equal(t, len(embeddings), removed)

	has, err := stores.Vectors.HasDocument(ctx, "big")
	require.NoError(t, err)
	assert.False(t, has)
	count, err = stores.Vectors.CountEmbeddings(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
