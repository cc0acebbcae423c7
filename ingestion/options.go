package ingestion

import (
	"strings"

	"github.com/poiesic/sibyl/core"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	MinChunkSize        = 100
	MaxChunkSize        = 5000
	MaxChunkOverlap     = 1000
	DefaultLanguage     = "en"
	DefaultMaxFiles     = 50
	DefaultMaxFileSize  = 50 << 20
)

// Options controls how a batch is processed.
type Options struct {
	ChunkSize         int    `json:"chunk_size"`
	ChunkOverlap      int    `json:"chunk_overlap"`
	ExtractEntities   bool   `json:"extract_entities"`
	CreateEmbeddings  bool   `json:"create_embeddings"`
	Language          string `json:"language"`
	OverwriteExisting bool   `json:"overwrite_existing"`
	// BatchID is generated when empty.
	BatchID string `json:"batch_id,omitempty"`
}

// DefaultOptions returns options that populate both stores.
func DefaultOptions() Options {
	return Options{
		ChunkSize:        DefaultChunkSize,
		ChunkOverlap:     DefaultChunkOverlap,
		ExtractEntities:  true,
		CreateEmbeddings: true,
		Language:         DefaultLanguage,
	}
}

// Validate reports the first invalid option as a *core.ValidationError.
func (o Options) Validate() error {
	if o.ChunkSize < MinChunkSize || o.ChunkSize > MaxChunkSize {
		return core.NewValidationError("chunk_size", "must be between 100 and 5000")
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap > MaxChunkOverlap {
		return core.NewValidationError("chunk_overlap", "must be between 0 and 1000")
	}
	if o.ChunkOverlap >= o.ChunkSize {
		return core.NewValidationError("chunk_overlap", "must be less than chunk_size")
	}
	if n := len(strings.TrimSpace(o.Language)); n < 2 || n > 5 {
		return core.NewValidationError("language", "must be 2 to 5 characters")
	}
	if len(o.BatchID) > 128 {
		return core.NewValidationError("batch_id", "must be at most 128 bytes")
	}
	return nil
}
