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

// Package ai provides abstractions for AI services used in Sibyl.
//
// This package defines interfaces for AI operations including text embeddings,
// entity extraction and answer generation. The core domain and business logic
// depend on these abstractions rather than concrete implementations.
//
// # Interfaces
//
//   - Embedder: Generates vector embeddings from text
//   - EntityExtractor: Extracts entities and relationships from text
//   - Generator: Produces an assistant reply for a conversation
//   - HealthChecker: Optional reachability probe
//   - AIProvider: Aggregates the ingestion-side services for convenient initialization
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// Generators for the chat path live in the generation package, which wraps
// several vendors behind a priority ordered fallback chain.
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, etc.) return
// INTERFACE types to enforce abstraction. Test utility constructors
// (mock.NewMockEmbedder, mock.NewMockEntityExtractor) return CONCRETE types to
// enable test assertions and behavior injection.
//
// # Usage Example
//
//	config := &ai.Config{
//	    Embedding:     ai.Endpoint{Host: "http://localhost:11434", Model: "nomic-embed-text"},
//	    Extraction:    ai.Endpoint{Host: "http://localhost:11434", Model: "qwen2.5:3b"},
//	    MinConfidence: 0.5,
//	}
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "Hello world")
//	graph, err := provider.EntityExtractor().ExtractGraph(ctx, "AuthService requires PostgreSQL")
package ai
