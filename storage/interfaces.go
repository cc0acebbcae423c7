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

package storage

import (
	"context"

	"github.com/poiesic/sibyl/core"
)

// DocumentScoped is implemented by stores whose rows are tagged with a document id.
type DocumentScoped interface {
	// HasDocument reports whether any row is tagged with the document id.
	HasDocument(ctx context.Context, doc core.DocumentID) (bool, error)

	// DeleteDocument removes every row tagged with the document id in a single
	// transaction and returns the number of primary rows removed.
	DeleteDocument(ctx context.Context, doc core.DocumentID) (int, error)
}

// Pinger reports whether a store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GraphStore stores entities and relationships.
type GraphStore interface {
	DocumentScoped
	Pinger

	// UpsertGraph writes the entities and relationships of one document atomically.
	UpsertGraph(ctx context.Context, doc core.DocumentID, entities []*core.Entity, relationships []*core.Relationship) error

	// FindEntities returns entities whose names contain any of the terms,
	// at most limit of them.
	FindEntities(ctx context.Context, terms []string, limit int) ([]*core.Entity, error)

	// GetEntities returns the entities with the given IDs. Missing IDs are skipped.
	GetEntities(ctx context.Context, ids ...core.ID) ([]*core.Entity, error)

	// GetRelationships returns relationships touching any of the given entities.
	GetRelationships(ctx context.Context, entityIDs ...core.ID) ([]*core.Relationship, error)

	Close() error
}

// VectorStore stores chunk embeddings and answers similarity queries.
type VectorStore interface {
	DocumentScoped
	Pinger

	// UpsertEmbeddings writes the embeddings of one document atomically.
	UpsertEmbeddings(ctx context.Context, doc core.DocumentID, embeddings []*core.Embedding) error

	// FindSimilar returns up to limit embeddings with cosine similarity of at
	// least minSimilarity, best first.
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.ScoredEmbedding, error)

	// ForEachBatch calls fn with successive batches of stored embeddings in ID
	// order, starting after the given ID (0 starts at the beginning).
	ForEachBatch(ctx context.Context, after core.ID, batchSize int, fn func([]*core.Embedding) error) error

	// CountEmbeddings returns the number of stored embeddings.
	CountEmbeddings(ctx context.Context) (int, error)

	Close() error
}

// DocumentRepository stores committed documents. A document is only registered
// after all of its artifacts are written.
type DocumentRepository interface {
	PutDocument(ctx context.Context, doc *core.Document) error
	GetDocument(ctx context.Context, id core.DocumentID) (*core.Document, error)
	HasDocument(ctx context.Context, id core.DocumentID) (bool, error)
	DeleteDocument(ctx context.Context, id core.DocumentID) error
	ListDocuments(ctx context.Context) ([]*core.Document, error)
	Close() error
}

// CheckpointRepository persists progress markers of resumable processors.
type CheckpointRepository interface {
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error
	// LoadCheckpoint returns nil, nil when no checkpoint exists.
	LoadCheckpoint(ctx context.Context, processor string) (*core.Checkpoint, error)
	DeleteCheckpoint(ctx context.Context, processor string) error
}
