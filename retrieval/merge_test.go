package retrieval

import (
	"fmt"
	"testing"

	"github.com/poiesic/sibyl/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(kind core.SourceKind, content string, score float64) core.Evidence {
	return core.NewEvidence(kind, content, score, core.Origin{DocumentID: "doc", ItemID: core.IDFromContent(content)})
}

func TestMerge_OrdersByScoreThenKind(t *testing.T) {
	graph := []core.Evidence{ev(core.SourceGraph, "g1", 0.8), ev(core.SourceGraph, "g2", 0.5)}
	vector := []core.Evidence{ev(core.SourceVector, "v1", 0.9), ev(core.SourceVector, "v2", 0.5)}

	merged := Merge(0, vector, graph)

	require.Len(t, merged, 4)
	assert.Equal(t, "v1", merged[0].Content)
	assert.Equal(t, "g1", merged[1].Content)
	assert.Equal(t, "g2", merged[2].Content)
	assert.Equal(t, "v2", merged[3].Content)
}

func TestMerge_DedupeKeepsHigherScore(t *testing.T) {
	low := ev(core.SourceVector, "same", 0.4)
	high := ev(core.SourceVector, "same", 0.9)
	require.Equal(t, low.DedupeKey, high.DedupeKey)

	merged := Merge(10, []core.Evidence{low}, []core.Evidence{high})

	require.Len(t, merged, 1)
	assert.Equal(t, 0.9, merged[0].Score)
}

func TestMerge_TruncatesAndClamps(t *testing.T) {
	set := []core.Evidence{
		{Kind: core.SourceGraph, Content: "a", Score: 1.7},
		{Kind: core.SourceGraph, Content: "b", Score: -2},
		{Kind: core.SourceGraph, Content: "c", Score: 0.3},
	}

	merged := Merge(2, set)

	require.Len(t, merged, 2)
	assert.Equal(t, 1.0, merged[0].Score)
	assert.Equal(t, "c", merged[1].Content)
	assert.NotEmpty(t, merged[0].DedupeKey)
}

func TestMerge_InputOrderIndependent(t *testing.T) {
	var graph, vector []core.Evidence
	for i := 0; i < 20; i++ {
		score := float64(i%5) / 5
		graph = append(graph, ev(core.SourceGraph, fmt.Sprintf("g%d", i), score))
		vector = append(vector, ev(core.SourceVector, fmt.Sprintf("v%d", i), score))
	}
	reversed := func(in []core.Evidence) []core.Evidence {
		out := make([]core.Evidence, len(in))
		for i := range in {
			out[len(in)-1-i] = in[i]
		}
		return out
	}

	a := Merge(15, graph, vector)
	b := Merge(15, reversed(vector), reversed(graph))

	assert.Equal(t, a, b)
	seen := map[string]bool{}
	for _, e := range a {
		assert.False(t, seen[e.DedupeKey])
		seen[e.DedupeKey] = true
	}
}

func TestMerge_Empty(t *testing.T) {
	assert.Empty(t, Merge(5))
	assert.Empty(t, Merge(5, nil, nil))
}
