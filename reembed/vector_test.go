package reembed

import (
	"math"
	"testing"

	"github.com/poiesic/sibyl/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVector(t *testing.T) {
	inv := float32(1 / math.Sqrt2)
	tests := []struct {
		name  string
		input []float32
		want  []float32
	}{
		{"unit vector", []float32{0, 1, 0}, []float32{0, 1, 0}},
		{"3-4-5", []float32{3, 4}, []float32{0.6, 0.8}},
		{"negative", []float32{-2, 2}, []float32{-inv, inv}},
		{"tiny components", []float32{1e-4, 0, 1e-4}, []float32{inv, 0, inv}},
		{"large components", []float32{3e20, 4e20}, []float32{0.6, 0.8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeVector(tt.input)
			require.Len(t, got, len(tt.want))
			assert.InDeltaSlice(t, tt.want, got, 1e-6)
			assert.InDelta(t, 1.0, magnitude(got), 1e-6)
		})
	}
}

func TestNormalizeVector_DoesNotModifyInput(t *testing.T) {
	input := []float32{3, 4}
	NormalizeVector(input)
	assert.Equal(t, []float32{3, 4}, input)
}

func TestNormalizeVector_Degenerate(t *testing.T) {
	zero := []float32{0, 0, 0}
	got := NormalizeVector(zero)
	assert.Equal(t, []float32{0, 0, 0}, got)
	got[0] = 1
	assert.Equal(t, float32(0), zero[0], "zero vector result is a copy")

	assert.Empty(t, NormalizeVector(nil))
	assert.Empty(t, NormalizeVector([]float32{}))
}

func TestNormalizeVector_EmbedderOutput(t *testing.T) {
	v := mock.DeterministicVector("reset the router")
	require.Len(t, v, mock.Dimensions)
	assert.InDelta(t, 1.0, magnitude(NormalizeVector(v)), 1e-5)
}
