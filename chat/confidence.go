package chat

import "github.com/poiesic/sibyl/core"

const (
	tierPenalty = 0.2
	minBase     = 0.4
)

// TierBase is the confidence ceiling for a reply produced by the provider at
// zero based position tier of the fallback chain.
func TierBase(tier int) float64 {
	if tier < 0 {
		tier = 0
	}
	return max(minBase, 1-tierPenalty*float64(tier))
}

// Confidence scores a reply from the tier of the provider that produced it
// and the mean relevance of the retrieved evidence.
func Confidence(tier int, meanRelevance float64) float64 {
	return core.ClampUnit(TierBase(tier) * (0.5 + 0.5*core.ClampUnit(meanRelevance)))
}
