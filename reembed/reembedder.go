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

package reembed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/sibyl/ai"
	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of embeddings read and embedded together
	BatchSize int

	// ReportInterval is how often to report progress (number of embeddings)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for each embedding call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Summary describes a completed run.
type Summary struct {
	Total      int
	Reembedded int
	Skipped    int
	// Resumed counts chunks already handled by an interrupted earlier run.
	Resumed    int
	Elapsed    time.Duration
}

// CheckpointName identifies reembedding progress in a checkpoint repository.
const CheckpointName = "reembed"

// Reembedder rewrites every stored chunk embedding with the configured embedder.
type Reembedder struct {
	store       storage.VectorStore
	checkpoints storage.CheckpointRepository
	config      *Config
	progress    io.Writer
	processor   *BatchProcessor
}

// Option configures a Reembedder.
type Option func(*Reembedder)

// WithCheckpoints records progress after every batch in repo so an interrupted
// run resumes where it stopped. The checkpoint is removed when a run completes.
func WithCheckpoints(repo storage.CheckpointRepository) Option {
	return func(r *Reembedder) {
		r.checkpoints = repo
	}
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(store storage.VectorStore, embedder ai.Embedder, config *Config, progress io.Writer, opts ...Option) (*Reembedder, error) {
	if store == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}
	if config.ReportInterval <= 0 {
		config.ReportInterval = config.BatchSize
	}
	if progress == nil {
		progress = io.Discard
	}

	r := &Reembedder{
		store:     store,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(store, embedder, config.MaxRetries, config.RetryDelay),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run re-embeds all stored chunks. It stops at the first batch that cannot be
// embedded or written; batches already written keep their new vectors.
func (r *Reembedder) Run(ctx context.Context) (*Summary, error) {
	total, err := r.store.CountEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count embeddings: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No embeddings found in store (0 chunks)\n")
		return &Summary{}, nil
	}

	var after core.ID
	seen := 0
	if r.checkpoints != nil {
		cp, err := r.checkpoints.LoadCheckpoint(ctx, CheckpointName)
		if err != nil {
			return nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if cp != nil {
			after, seen = cp.LastID, min(cp.Processed, total)
			fmt.Fprintf(r.progress, "Resuming after %d chunks (checkpoint from %s)\n",
				seen, cp.UpdatedAt.Format(time.RFC3339))
		}
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d chunks (batch size: %d)\n",
		total-seen, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	summary := &Summary{Total: total, Resumed: seen}
	err = r.store.ForEachBatch(ctx, after, r.config.BatchSize, func(batch []*core.Embedding) error {
		n, err := r.processor.Process(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		summary.Reembedded += n
		summary.Skipped += len(batch) - n
		seen += len(batch)
		tracker.Update(seen)
		return r.saveCheckpoint(ctx, batch[len(batch)-1].ID, seen)
	})
	if err != nil {
		return summary, err
	}

	if r.checkpoints != nil {
		if err := r.checkpoints.DeleteCheckpoint(ctx, CheckpointName); err != nil {
			return summary, fmt.Errorf("failed to clear checkpoint: %w", err)
		}
	}
	tracker.Finish()
	summary.Elapsed = tracker.Elapsed()

	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
		summary.Reembedded, summary.Elapsed.Round(time.Second), float64(summary.Reembedded)/summary.Elapsed.Seconds())
	return summary, nil
}

func (r *Reembedder) saveCheckpoint(ctx context.Context, last core.ID, processed int) error {
	if r.checkpoints == nil {
		return nil
	}
	err := r.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		Processor: CheckpointName,
		LastID:    last,
		Processed: processed,
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}
