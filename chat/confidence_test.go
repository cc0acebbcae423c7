package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfidence(t *testing.T) {
	tests := []struct {
		name string
		tier int
		mean float64
		want float64
	}{
		{"primary with perfect evidence", 0, 1, 1},
		{"primary without evidence", 0, 0, 0.5},
		{"second tier", 1, 0.5, 0.8 * 0.75},
		{"third tier", 2, 1, 0.6},
		{"deep tiers floor at 0.4", 7, 0, 0.2},
		{"relevance above one is clamped", 0, 3, 1},
		{"negative tier treated as primary", -1, 0, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Confidence(tt.tier, tt.mean), 1e-9)
		})
	}
}

func TestTierBase_NonIncreasing(t *testing.T) {
	prev := TierBase(0)
	for tier := 1; tier < 10; tier++ {
		base := TierBase(tier)
		assert.LessOrEqual(t, base, prev)
		prev = base
	}
}

func TestConfidence_Deterministic(t *testing.T) {
	assert.Equal(t, Confidence(1, 0.63), Confidence(1, 0.63))
}
