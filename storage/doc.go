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

// Package storage provides the storage abstraction layer for sibyl.
//
// This package defines the store interfaces consumed by retrieval and ingestion:
//
//   - GraphStore: entities and relationships, queried by name terms and adjacency
//   - VectorStore: chunk embeddings, queried by cosine similarity
//   - DocumentRepository: committed documents
//
// Every entity, relationship and embedding is tagged with the id of the document it
// was extracted from, so that all artifacts of a document can be removed in one
// DeleteDocument call when the document is re-ingested or an ingestion is rolled back.
//
// # Constructor Return Type Pattern
//
// Public constructors in implementation packages return concrete types that satisfy
// these interfaces; consumers accept the interfaces:
//
//	graph := badger.NewGraphStore(backend)      // satisfies storage.GraphStore
//	pipeline, err := ingestion.NewPipeline(graph, vectors, docs, ...)
//
// # Serialization
//
// Records are stored as compact MUS encoded values (see serialization.go).
//
// # Thread Safety
//
// All implementations must be safe for concurrent use from multiple goroutines.
//
// # Context Support
//
// All methods accept context.Context. Pass context.Background() for operations
// without specific timeout requirements.
package storage
