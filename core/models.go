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

package core

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID identifies stored items (entities, relationships, embeddings).
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// DocumentID identifies a document. It is either supplied by the caller or
// derived from the document bytes with DocumentIDFromContent.
type DocumentID string

// DocumentIDFromContent returns the hex encoded 256-bit BLAKE2b digest of content.
// The same digest is recorded as the document checksum.
func DocumentIDFromContent(content []byte) DocumentID {
	h, _ := blake2b.New(32, nil)
	h.Write(content)
	return DocumentID(hex.EncodeToString(h.Sum(nil)))
}

// DocumentIDFromSource returns an ID bound to where a document comes from, such
// as a file path, rather than to its content. Edits keep the same ID.
func DocumentIDFromSource(source string) DocumentID {
	return DocumentIDFromContent([]byte("source|" + source))
}

// EntityID derives the ID of an entity from its document, type and normalized name.
// Entities are scoped to their document so that deleting a document never touches
// entities owned by another.
func EntityID(doc DocumentID, entityType, name string) ID {
	return IDFromContent(string(doc) + "|entity|" + entityType + "|" + name)
}

// RelationshipID derives the ID of a relationship from its document and endpoints.
func RelationshipID(doc DocumentID, source ID, relType string, target ID) ID {
	return IDFromContent(string(doc) + "|rel|" + strconv.FormatUint(uint64(source), 16) +
		"|" + relType + "|" + strconv.FormatUint(uint64(target), 16))
}

// ChunkID derives the ID of a chunk (and its embedding) from its document and ordinal.
func ChunkID(doc DocumentID, index int) ID {
	return IDFromContent(string(doc) + "|chunk|" + strconv.Itoa(index))
}

// Document is a unit of ingested content. A stored Document marks the point at which
// all of its artifacts have been written; artifacts of unregistered documents are
// never served.
type Document struct {
	ID                DocumentID
	Title             string
	Filename          string
	Text              string
	Checksum          string
	Language          string
	ChunkCount        int
	EntityCount       int
	RelationshipCount int
	EmbeddingCount    int
	IngestedAt        time.Time
}

// Chunk is a window of a document's text. Start and End are word offsets.
type Chunk struct {
	DocumentID DocumentID
	Index      int
	Text       string
	Start      int
	End        int
}

// Entity is a named thing extracted from a chunk and stored in the graph store.
type Entity struct {
	ID         ID
	DocumentID DocumentID
	ChunkIndex int
	Name       string
	Type       string
	Confidence float64
	Context    string
}

// Relationship is a typed, directed edge between two entities of the same document.
type Relationship struct {
	ID         ID
	DocumentID DocumentID
	ChunkIndex int
	SourceID   ID
	TargetID   ID
	SourceName string
	TargetName string
	Type       string
	Confidence float64
	Context    string
}

// Embedding is the vector for one chunk, stored in the vector store.
type Embedding struct {
	ID         ID
	DocumentID DocumentID
	ChunkIndex int
	Text       string
	Vector     []float32
}

// ScoredEmbedding is an embedding returned from a similarity query.
type ScoredEmbedding struct {
	Embedding *Embedding
	Score     float32
}

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is an ordered sequence of messages.
type Conversation struct {
	ID       string    `json:"id"`
	Messages []Message `json:"messages"`
}

// OutcomeStatus is the result of ingesting one file.
type OutcomeStatus string

const (
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeFailed    OutcomeStatus = "failed"
)

// IngestionStats counts the artifacts produced for one document.
type IngestionStats struct {
	Chunks        int `json:"chunks"`
	Entities      int `json:"entities"`
	Relationships int `json:"relationships"`
	Embeddings    int `json:"embeddings"`
}

// IngestionOutcome reports what happened to a single file of a batch.
type IngestionOutcome struct {
	Filename       string         `json:"filename"`
	DocumentID     DocumentID     `json:"document_id,omitempty"`
	Status         OutcomeStatus  `json:"status"`
	Stats          IngestionStats `json:"stats"`
	Checksum       string         `json:"checksum,omitempty"`
	ErrorType      string         `json:"error_type,omitempty"`
	ErrorCode      string         `json:"error_code,omitempty"`
	Error          string         `json:"error,omitempty"`
	RetryPossible  bool           `json:"retry_possible,omitempty"`
	ProcessingTime time.Duration  `json:"processing_time"`
}

// Checkpoint records how far a long running processor got, so an interrupted
// run can resume after LastID.
type Checkpoint struct {
	Processor string
	LastID    ID
	Processed int
	UpdatedAt time.Time
}
