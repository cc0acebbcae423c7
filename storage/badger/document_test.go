package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentRepository(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	repo := stores.Documents

	_, err := repo.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	doc := &core.Document{ID: "doc-1", Title: "Manual", Filename: "manual.md", IngestedAt: time.Now().UTC().Truncate(time.Microsecond)}
	require.NoError(t, repo.PutDocument(ctx, doc))
	require.NoError(t, repo.PutDocument(ctx, &core.Document{ID: "doc-2"}))

	has, err := repo.HasDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, has)

	got, err := repo.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	docs, err := repo.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	require.NoError(t, repo.DeleteDocument(ctx, "doc-1"))
	require.NoError(t, repo.DeleteDocument(ctx, "doc-1"))
	has, err = repo.HasDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, has)

	assert.ErrorIs(t, repo.PutDocument(ctx, &core.Document{}), core.ErrMissingDocumentID)
}
