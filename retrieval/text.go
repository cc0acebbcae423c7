package retrieval

import (
	"strings"
	"unicode"
)

// Stop words to filter out of queries before keyword matching
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "or": true, "how": true, "what": true, "why": true,
	"i": true, "my": true, "can": true, "does": true, "when": true, "which": true,
}

// Keywords splits text into lowercase letter/digit runs, removes stop words and
// duplicates, and keeps first-seen order. The token rule matches the graph
// store's name index.
func Keywords(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(words))
	filtered := make([]string, 0, len(words))
	for _, word := range words {
		if stopWords[word] || seen[word] {
			continue
		}
		seen[word] = true
		filtered = append(filtered, word)
	}
	return filtered
}

// matchFraction returns the share of keywords that appear among the keywords of text.
func matchFraction(keywords []string, text string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	present := make(map[string]bool)
	for _, w := range Keywords(text) {
		present[w] = true
	}
	matched := 0
	for _, k := range keywords {
		if present[k] {
			matched++
		}
	}
	return float64(matched) / float64(len(keywords))
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
