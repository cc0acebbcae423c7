package core

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvidence(t *testing.T) {
	origin := Origin{DocumentID: "doc-1", ItemID: 42}

	t.Run("clamps score", func(t *testing.T) {
		assert.Equal(t, 1.0, NewEvidence(SourceVector, "x", 1.7, origin).Score)
		assert.Equal(t, 0.0, NewEvidence(SourceVector, "x", -0.2, origin).Score)
		assert.Equal(t, 0.0, NewEvidence(SourceVector, "x", math.NaN(), origin).Score)
	})

	t.Run("dedupe key depends on content and origin", func(t *testing.T) {
		a := NewEvidence(SourceGraph, "router fails", 0.5, origin)
		b := NewEvidence(SourceGraph, "router fails", 0.9, origin)
		c := NewEvidence(SourceGraph, "router fails", 0.5, Origin{DocumentID: "doc-2", ItemID: 42})
		d := NewEvidence(SourceGraph, "router works", 0.5, origin)

		assert.Equal(t, a.DedupeKey, b.DedupeKey)
		assert.NotEqual(t, a.DedupeKey, c.DedupeKey)
		assert.NotEqual(t, a.DedupeKey, d.DedupeKey)
	})
}

func TestSourceKind_JSON(t *testing.T) {
	ev := NewEvidence(SourceGraph, "content", 0.5, Origin{DocumentID: "d"})
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"graph"`)
	assert.Contains(t, string(data), `"relevance":0.5`)
	assert.NotContains(t, string(data), "DedupeKey")
}

func TestKnowledgeContext_MeanRelevance(t *testing.T) {
	var empty *KnowledgeContext
	assert.Equal(t, 0.0, empty.MeanRelevance())
	assert.Equal(t, 0.0, (&KnowledgeContext{}).MeanRelevance())

	kc := &KnowledgeContext{Evidence: []Evidence{{Score: 0.2}, {Score: 0.6}}}
	assert.InDelta(t, 0.4, kc.MeanRelevance(), 1e-9)
}
