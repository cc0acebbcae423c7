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

package ai

import (
	"context"

	"github.com/poiesic/sibyl/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// EntityExtractor derives entities and the relationships between them from text.
// Implementations must be thread-safe for concurrent use.
type EntityExtractor interface {
	// ExtractGraph analyzes text and returns the entities it mentions and the
	// relationships it states between them. Relationship endpoints refer to
	// entity names in the same extraction.
	// Returns an empty Extraction if nothing is found.
	ExtractGraph(ctx context.Context, text string) (*Extraction, error)
}

// Extraction is the result of analyzing one chunk of text.
type Extraction struct {
	Entities      []ExtractedEntity
	Relationships []ExtractedRelationship
}

// ExtractedEntity represents an entity identified in text.
type ExtractedEntity struct {
	// Name is the entity as it appears in the text, e.g. "WiFi router".
	Name string

	// Type is one of EntityTypes.
	Type string

	// Confidence in [0,1].
	Confidence float64

	// Context is a short excerpt around the mention.
	Context string
}

// ExtractedRelationship is a directed, typed link between two extracted entities.
type ExtractedRelationship struct {
	Source     string
	Target     string
	Type       string
	Confidence float64
	Context    string
}

// Generator produces the next assistant turn for a conversation.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate returns the assistant's reply to messages. An empty reply is an error.
	Generate(ctx context.Context, messages []core.Message) (string, error)
}

// HealthChecker is implemented by services that can report reachability.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and EntityExtractor instances,
// ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// EntityExtractor returns the entity and relationship extraction service.
	EntityExtractor() EntityExtractor

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
