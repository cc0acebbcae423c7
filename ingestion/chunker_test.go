package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = "w" + string(rune('a'+i%26))
	}
	return strings.Join(w, " ")
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name    string
		words   int
		size    int
		overlap int
		spans   [][2]int
	}{
		{"empty", 0, 10, 2, nil},
		{"fits in one chunk", 5, 10, 2, [][2]int{{0, 5}}},
		{"exact size", 10, 10, 2, [][2]int{{0, 10}}},
		{"overlapping windows", 25, 10, 2, [][2]int{{0, 10}, {8, 18}, {16, 25}}},
		{"no overlap", 20, 10, 0, [][2]int{{0, 10}, {10, 20}}},
		{"overlap clamped below size", 12, 4, 9, [][2]int{{0, 4}, {1, 5}, {2, 6}, {3, 7}, {4, 8}, {5, 9}, {6, 10}, {7, 11}, {8, 12}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Chunk("doc", words(tt.words), tt.size, tt.overlap)
			require.Len(t, chunks, len(tt.spans))
			for i, c := range chunks {
				assert.Equal(t, i, c.Index)
				assert.Equal(t, tt.spans[i][0], c.Start)
				assert.Equal(t, tt.spans[i][1], c.End)
				assert.Len(t, strings.Fields(c.Text), c.End-c.Start)
				assert.EqualValues(t, "doc", c.DocumentID)
			}
		})
	}
}

func TestChunk_OverlapSharesWords(t *testing.T) {
	text := "one two three four five six seven"
	chunks := Chunk("doc", text, 4, 2)
	require.Len(t, chunks, 3)
	assert.Equal(t, "one two three four", chunks[0].Text)
	assert.Equal(t, "three four five six", chunks[1].Text)
	assert.Equal(t, "five six seven", chunks[2].Text)
}
