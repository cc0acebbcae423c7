package mock

import (
	"context"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/poiesic/sibyl/ai"
)

// MockEntityExtractor is a test double for ai.EntityExtractor.
// It allows custom behavior injection via function fields.
type MockEntityExtractor struct {
	// ExtractGraphFunc is called by ExtractGraph if set.
	// If nil, uses default capitalized word extraction.
	ExtractGraphFunc func(ctx context.Context, text string) (*ai.Extraction, error)

	callCount atomic.Int64
}

// NewMockEntityExtractor creates a mock entity extractor with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockExtractor().
func NewMockEntityExtractor() *MockEntityExtractor {
	return &MockEntityExtractor{}
}

// ExtractGraph extracts mock entities from text.
// Default behavior: every distinct word starting with an uppercase letter becomes
// a CONCEPT entity with confidence 0.9, and each entity is RELATED_TO the next one.
func (m *MockEntityExtractor) ExtractGraph(ctx context.Context, text string) (*ai.Extraction, error) {
	m.callCount.Add(1)

	if m.ExtractGraphFunc != nil {
		return m.ExtractGraphFunc(ctx, text)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &ai.Extraction{}
	seen := make(map[string]bool)
	for _, word := range strings.Fields(text) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word == "" || !unicode.IsUpper([]rune(word)[0]) || seen[strings.ToLower(word)] {
			continue
		}
		seen[strings.ToLower(word)] = true
		out.Entities = append(out.Entities, ai.ExtractedEntity{
			Name:       word,
			Type:       "CONCEPT",
			Confidence: 0.9,
			Context:    text,
		})
	}

	for i := 1; i < len(out.Entities); i++ {
		out.Relationships = append(out.Relationships, ai.ExtractedRelationship{
			Source:     out.Entities[i-1].Name,
			Target:     out.Entities[i].Name,
			Type:       "RELATED_TO",
			Confidence: ai.RelationshipTypes["RELATED_TO"],
		})
	}
	return out, nil
}

// CallCount returns the number of times ExtractGraph was called.
func (m *MockEntityExtractor) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and custom functions.
func (m *MockEntityExtractor) Reset() {
	m.callCount.Store(0)
	m.ExtractGraphFunc = nil
}
