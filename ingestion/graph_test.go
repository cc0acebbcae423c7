package ingestion

import (
	"context"
	"testing"

	"github.com/poiesic/sibyl/ai"
	"github.com/poiesic/sibyl/ai/mock"
	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphProcessor_MergesAcrossChunks(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()
	ctx := context.Background()

	extractor := mock.NewMockEntityExtractor()
	extractor.ExtractGraphFunc = func(ctx context.Context, text string) (*ai.Extraction, error) {
		switch text {
		case "first":
			return &ai.Extraction{
				Entities: []ai.ExtractedEntity{
					{Name: "Router", Type: "product", Confidence: 0.6},
					{Name: "Modem", Type: "PRODUCT", Confidence: 0.8},
				},
				Relationships: []ai.ExtractedRelationship{
					{Source: "router", Target: "Modem", Type: "connects to", Confidence: 0.6},
					{Source: "Router", Target: "Unknown", Type: "CAUSES", Confidence: 0.9},
				},
			}, nil
		default:
			return &ai.Extraction{
				Entities: []ai.ExtractedEntity{
					{Name: "router", Type: "PRODUCT", Confidence: 0.9, Context: "the router blinks"},
				},
				Relationships: []ai.ExtractedRelationship{
					// Modem resolves to the entity from the first chunk
					{Source: "Router", Target: "modem", Type: "CONNECTS_TO", Confidence: 0.7},
				},
			}, nil
		}
	}

	gp, err := newGraphProcessor(stores.Graph, extractor, 1, 0, nil)
	require.NoError(t, err)

	chunks := []core.Chunk{{DocumentID: "doc", Index: 0, Text: "first"}, {DocumentID: "doc", Index: 1, Text: "second"}}
	stats, err := gp.process(ctx, "doc", chunks)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entities)
	assert.Equal(t, 1, stats.Relationships)

	entities, err := stores.Graph.FindEntities(ctx, []string{"router"}, 5)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "Router", entities[0].Name)
	assert.Equal(t, "PRODUCT", entities[0].Type)
	assert.InDelta(t, 0.9, entities[0].Confidence, 1e-9)
	assert.Equal(t, "the router blinks", entities[0].Context)

	rels, err := stores.Graph.GetRelationships(ctx, entities[0].ID)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "CONNECTS_TO", rels[0].Type)
	assert.InDelta(t, 0.7, rels[0].Confidence, 1e-9)
	assert.Equal(t, "Modem", rels[0].TargetName)

	require.NoError(t, gp.purge(ctx, "doc"))
	ok, err := stores.Graph.HasDocument(ctx, "doc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDocGraph_ClampsConfidence(t *testing.T) {
	g := newDocGraph("doc")
	id := g.addEntity(0, ai.ExtractedEntity{Name: "Router", Type: "PRODUCT", Confidence: 0.4})
	g.addEntity(1, ai.ExtractedEntity{Name: "router", Type: "PRODUCT", Confidence: 1.7, Context: "again"})
	assert.Equal(t, 1.0, g.entityByID[id].Confidence)
	assert.Equal(t, "again", g.entityByID[id].Context)

	// An out of range first sighting is clamped the same way
	other := g.addEntity(0, ai.ExtractedEntity{Name: "Modem", Type: "PRODUCT", Confidence: -2})
	assert.Equal(t, 0.0, g.entityByID[other].Confidence)
	g.addEntity(1, ai.ExtractedEntity{Name: "Modem", Type: "PRODUCT", Confidence: -1})
	assert.Equal(t, 0.0, g.entityByID[other].Confidence)
}
