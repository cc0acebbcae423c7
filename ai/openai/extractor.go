// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package openai

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/sibyl/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// EntityExtractor implements ai.EntityExtractor using OpenAI-compatible chat APIs.
type EntityExtractor struct {
	client        llms.Model
	minConfidence float64
	logger        *slog.Logger
}

// entity and relationship are internal types used for JSON unmarshaling.
// They match the structure expected from the LLM.
type entity struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context"`
}

type relationship struct {
	Source     string   `json:"source"`
	Target     string   `json:"target"`
	Type       string   `json:"type"`
	Confidence *float64 `json:"confidence"`
	Context    string   `json:"context"`
}

// analysis is the wrapper structure for the LLM's JSON response.
type analysis struct {
	Entities      []entity       `json:"entities"`
	Relationships []relationship `json:"relationships"`
}

// newEntityExtractor is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEntityExtractor(config *ai.Config) (*EntityExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.Extraction.Host),
		openai.WithToken(token(config.APIKey)),
		openai.WithModel(config.Extraction.Model),
	)
	if err != nil {
		return nil, err
	}

	return newEntityExtractorWithModel(client, config.MinConfidence), nil
}

func newEntityExtractorWithModel(client llms.Model, minConfidence float64) *EntityExtractor {
	return &EntityExtractor{
		client:        client,
		minConfidence: minConfidence,
		logger:        slog.Default().With("component", "openai-extractor"),
	}
}

// NewEntityExtractor creates a new entity extractor using the provided configuration.
//
// Returns ai.EntityExtractor interface to enforce abstraction.
func NewEntityExtractor(config *ai.Config) (ai.EntityExtractor, error) {
	return newEntityExtractor(config)
}

// ExtractGraph extracts entities and relationships from text using an LLM.
// Items below the minimum confidence, and relationships whose endpoints were
// not extracted, are dropped.
func (e *EntityExtractor) ExtractGraph(ctx context.Context, text string) (*ai.Extraction, error) {
	text = scrubString(text)
	if text == "" {
		return &ai.Extraction{}, nil
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, buildSystemPrompt()),
		llms.TextParts(llms.ChatMessageTypeHuman, text),
	}

	// Try up to 3 times in case of malformed JSON
	var result analysis
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			e.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, err
		}

		if len(response.Choices) < 1 {
			e.logger.Debug("no choices returned from model")
			return &ai.Extraction{}, nil
		}

		responseText := stripCodeFence(response.Choices[0].Content)
		responseText = repairJSON(responseText)

		result = analysis{}
		if err := json.Unmarshal([]byte(responseText), &result); err != nil {
			lastErr = err
			e.logger.Warn("error parsing extractor response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		lastErr = nil
		break
	}

	if lastErr != nil {
		e.logger.Error("failed to parse extractor response after retries", "err", lastErr)
		return nil, lastErr
	}

	extraction := e.filter(result)
	e.logger.Debug("extracted graph",
		"entities", len(result.Entities),
		"kept_entities", len(extraction.Entities),
		"relationships", len(result.Relationships),
		"kept_relationships", len(extraction.Relationships))
	return extraction, nil
}

func (e *EntityExtractor) filter(result analysis) *ai.Extraction {
	out := &ai.Extraction{}
	names := make(map[string]bool)
	for _, ent := range result.Entities {
		name := strings.TrimSpace(ent.Name)
		key := strings.ToLower(name)
		if name == "" || ent.Confidence < e.minConfidence || names[key] {
			continue
		}
		names[key] = true
		out.Entities = append(out.Entities, ai.ExtractedEntity{
			Name:       name,
			Type:       ai.NormalizeEntityType(ent.Type),
			Confidence: min(ent.Confidence, 1),
			Context:    ent.Context,
		})
	}

	for _, rel := range result.Relationships {
		source := strings.TrimSpace(rel.Source)
		target := strings.TrimSpace(rel.Target)
		if !names[strings.ToLower(source)] || !names[strings.ToLower(target)] || strings.EqualFold(source, target) {
			continue
		}
		relType := ai.NormalizeRelationshipType(rel.Type)
		confidence := ai.RelationshipTypes[relType]
		if rel.Confidence != nil {
			confidence = min(*rel.Confidence, 1)
		}
		if confidence < e.minConfidence {
			continue
		}
		out.Relationships = append(out.Relationships, ai.ExtractedRelationship{
			Source:     source,
			Target:     target,
			Type:       relType,
			Confidence: confidence,
			Context:    rel.Context,
		})
	}

	// Sort by confidence (descending)
	slices.SortStableFunc(out.Entities, func(a, b ai.ExtractedEntity) int {
		return compareDesc(a.Confidence, b.Confidence)
	})
	slices.SortStableFunc(out.Relationships, func(a, b ai.ExtractedRelationship) int {
		return compareDesc(a.Confidence, b.Confidence)
	})
	return out
}

func compareDesc(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}
