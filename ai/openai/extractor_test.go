package openai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms/fake"
)

const sampleResponse = "```json\n" + `{
  "entities": [
    {"name":"AuthService","type":"component","confidence":0.9,"context":"AuthService requires PostgreSQL"},
    {"name":"PostgreSQL","type":"TECHNOLOGY","confidence":0.8},
    {"name":"maybe thing","type":"CONCEPT","confidence":0.2}
  ],
  "relationships": [
    {"source":"AuthService","target":"PostgreSQL","type":"requires"},
    {"source":"AuthService","target":"maybe thing","type":"CAUSES","confidence":0.9},
    {"source":"PostgreSQL","target":"postgresql","type":"SIMILAR_TO","confidence":0.9}
  ]
}` + "\n```"

func TestEntityExtractor_ExtractGraph(t *testing.T) {
	extractor := newEntityExtractorWithModel(fake.NewFakeLLM([]string{sampleResponse}), 0.5)

	got, err := extractor.ExtractGraph(context.Background(), "AuthService requires PostgreSQL.")
	require.NoError(t, err)

	require.Len(t, got.Entities, 2)
	assert.Equal(t, "AuthService", got.Entities[0].Name)
	assert.Equal(t, "COMPONENT", got.Entities[0].Type)
	assert.Equal(t, "PostgreSQL", got.Entities[1].Name)

	require.Len(t, got.Relationships, 1)
	rel := got.Relationships[0]
	assert.Equal(t, "REQUIRES", rel.Type)
	assert.Equal(t, 0.7, rel.Confidence)
}

func TestEntityExtractor_RetriesMalformedJSON(t *testing.T) {
	llm := fake.NewFakeLLM([]string{
		"not json at all",
		`{"entities": [{"name":"Router","type":"PRODUCT","confidence":0.9}], "relationships": []}`,
	})
	extractor := newEntityExtractorWithModel(llm, 0.5)

	got, err := extractor.ExtractGraph(context.Background(), "reset the Router")
	require.NoError(t, err)
	require.Len(t, got.Entities, 1)
	assert.Equal(t, "Router", got.Entities[0].Name)
}

func TestEntityExtractor_GivesUpAfterThreeAttempts(t *testing.T) {
	extractor := newEntityExtractorWithModel(fake.NewFakeLLM([]string{"{{{"}), 0.5)

	_, err := extractor.ExtractGraph(context.Background(), "anything")
	assert.Error(t, err)
}

func TestEntityExtractor_EmptyText(t *testing.T) {
	extractor := newEntityExtractorWithModel(fake.NewFakeLLM(nil), 0.5)

	got, err := extractor.ExtractGraph(context.Background(), "  \n ")
	require.NoError(t, err)
	assert.Empty(t, got.Entities)
	assert.Empty(t, got.Relationships)
}

func TestBuildSystemPrompt(t *testing.T) {
	prompt := buildSystemPrompt()
	assert.Contains(t, prompt, "PRODUCT, ERROR, COMPONENT")
	assert.Contains(t, prompt, "CAUSES")
	assert.Contains(t, prompt, "RELATED_TO")
}

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"valid", `{"ok":true}`, `{"ok":true}`},
		{"missing opening quote", `{"name":"x", type":"y"}`, `{"name":"x", "type":"y"}`},
		{"bare key", `{entities: []}`, `{"entities": []}`},
		{"trailing commas", `{"entities":[{"name":"a"},],}`, `{"entities":[{"name":"a"}]}`},
		{"surrounding prose", "Here you go:\n{\"ok\":true}\nDone.", `{"ok":true}`},
		{"strings untouched", `{"context":"a, b} and {c:"}`, `{"context":"a, b} and {c:"}`},
		{"escaped quote", `{"context":"say \"hi\", then",}`, `{"context":"say \"hi\", then"}`},
		{"array values", `{"ids":[one, two]}`, `{"ids":[one, two]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, repairJSON(tt.in))
		})
	}
}
