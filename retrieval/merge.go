package retrieval

import (
	"cmp"
	"slices"

	"github.com/poiesic/sibyl/core"
)

// Merge combines evidence lists into one ranking. Scores are clamped to [0,1],
// entries are ordered by score descending with graph before vector on equal
// scores, only the best entry per dedupe key survives, and the result is cut to
// max entries. A max of zero or less means no cap.
//
// The output depends only on the input values, never on input order.
func Merge(max int, sets ...[]core.Evidence) []core.Evidence {
	total := 0
	for _, set := range sets {
		total += len(set)
	}
	all := make([]core.Evidence, 0, total)
	for _, set := range sets {
		for _, e := range set {
			e.Score = core.ClampUnit(e.Score)
			if e.DedupeKey == "" {
				e.DedupeKey = core.DedupeKey(e.Content, e.Origin)
			}
			all = append(all, e)
		}
	}

	slices.SortStableFunc(all, compareEvidence)

	seen := make(map[string]bool, len(all))
	merged := all[:0]
	for _, e := range all {
		if seen[e.DedupeKey] {
			continue
		}
		seen[e.DedupeKey] = true
		merged = append(merged, e)
	}

	if max > 0 && len(merged) > max {
		merged = merged[:max]
	}
	return slices.Clip(merged)
}

func compareEvidence(a, b core.Evidence) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	if c := cmp.Compare(a.DedupeKey, b.DedupeKey); c != 0 {
		return c
	}
	return cmp.Compare(a.Content, b.Content)
}
