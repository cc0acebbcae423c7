package badger

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/poiesic/sibyl/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStores(t *testing.T) *Stores {
	t.Helper()
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })
	return stores
}

func sampleGraph(doc core.DocumentID) ([]*core.Entity, []*core.Relationship) {
	router := &core.Entity{
		ID: core.EntityID(doc, "PRODUCT", "wifi router"), DocumentID: doc,
		Name: "WiFi Router", Type: "PRODUCT", Confidence: 0.9, Context: "the wifi router reboots",
	}
	heat := &core.Entity{
		ID: core.EntityID(doc, "ERROR", "overheating"), DocumentID: doc,
		Name: "overheating", Type: "ERROR", Confidence: 0.8,
	}
	rel := &core.Relationship{
		ID:         core.RelationshipID(doc, heat.ID, "CAUSES", router.ID),
		DocumentID: doc,
		SourceID:   heat.ID, TargetID: router.ID,
		SourceName: heat.Name, TargetName: router.Name,
		Type: "CAUSES", Confidence: 0.8,
	}
	return []*core.Entity{router, heat}, []*core.Relationship{rel}
}

func TestGraphStore_UpsertAndFind(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	entities, rels := sampleGraph("doc-1")

	require.NoError(t, stores.Graph.UpsertGraph(ctx, "doc-1", entities, rels))

	t.Run("find by token", func(t *testing.T) {
		found, err := stores.Graph.FindEntities(ctx, []string{"Router"}, 10)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "WiFi Router", found[0].Name)
	})

	t.Run("more matched terms rank first", func(t *testing.T) {
		found, err := stores.Graph.FindEntities(ctx, []string{"overheating", "wifi", "router"}, 10)
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, "WiFi Router", found[0].Name)
	})

	t.Run("limit is applied", func(t *testing.T) {
		found, err := stores.Graph.FindEntities(ctx, []string{"overheating", "router"}, 1)
		require.NoError(t, err)
		assert.Len(t, found, 1)
	})

	t.Run("relationships reachable from both ends", func(t *testing.T) {
		fromTarget, err := stores.Graph.GetRelationships(ctx, entities[0].ID)
		require.NoError(t, err)
		require.Len(t, fromTarget, 1)
		assert.Equal(t, "CAUSES", fromTarget[0].Type)

		fromBoth, err := stores.Graph.GetRelationships(ctx, entities[0].ID, entities[1].ID)
		require.NoError(t, err)
		assert.Len(t, fromBoth, 1, "relationships are deduplicated")
	})

	t.Run("get entities skips missing", func(t *testing.T) {
		got, err := stores.Graph.GetEntities(ctx, entities[1].ID, core.ID(12345))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "overheating", got[0].Name)
	})
}

func TestGraphStore_RejectsForeignRows(t *testing.T) {
	stores := newTestStores(t)
	entities, _ := sampleGraph("doc-1")

	err := stores.Graph.UpsertGraph(context.Background(), "doc-2", entities, nil)
	assert.ErrorIs(t, err, core.ErrInvalidEntity)
}

func TestGraphStore_DeleteDocument(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)

	e1, r1 := sampleGraph("doc-1")
	e2, r2 := sampleGraph("doc-2")
	require.NoError(t, stores.Graph.UpsertGraph(ctx, "doc-1", e1, r1))
	require.NoError(t, stores.Graph.UpsertGraph(ctx, "doc-2", e2, r2))

	has, err := stores.Graph.HasDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, has)

	removed, err := stores.Graph.DeleteDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	has, err = stores.Graph.HasDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, has)

	// Only doc-2's router remains reachable through the token index
	found, err := stores.Graph.FindEntities(ctx, []string{"router"}, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, core.DocumentID("doc-2"), found[0].DocumentID)

	rels, err := stores.Graph.GetRelationships(ctx, e1[0].ID)
	require.NoError(t, err)
	assert.Empty(t, rels)

	removed, err = stores.Graph.DeleteDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestGraphStore_LargeDocument(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)

	passage := strings.Repeat("x", 8<<10)
	entities := make([]*core.Entity, 1500)
	for i := range entities {
		name := fmt.Sprintf("component %d", i)
		entities[i] = &core.Entity{
			ID: core.EntityID("big", "COMPONENT", name), DocumentID: "big",
			Name: name, Type: "COMPONENT", Confidence: 0.7, Context: passage,
		}
	}

	require.NoError(t, stores.Graph.UpsertGraph(ctx, "big", entities, nil))
	found, err := stores.Graph.FindEntities(ctx, []string{"component"}, 2000)
	require.NoError(t, err)
	assert.Len(t, found, len(entities))

	removed, err := stores.Graph.DeleteDocument(ctx, "big")
	require.NoError(t, err)
	assert.Equal(t, len(entities), removed)

	found, err = stores.Graph.FindEntities(ctx, []string{"component"}, 2000)
	require.NoError(t, err)
	assert.Empty(t, found)
}
