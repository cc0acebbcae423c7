package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/sibyl/ai"
	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/storage"
	"golang.org/x/sync/errgroup"
)

const (
	defaultEmbedBatchSize = 32
	defaultAttempts       = 3
	defaultRetryDelay     = 500 * time.Millisecond
)

// File is one uploaded document.
type File struct {
	// ID is a stable document ID chosen by the caller. When empty the
	// content hash is used, so identical content is one document.
	ID   core.DocumentID
	Name string
	Data []byte
}

// Pipeline ingests batches of documents into the graph and vector stores.
//
// Each document is written atomically: its artifacts are written first and
// its registry entry last. A failure rolls back everything written for the
// document, and one file's failure never affects the rest of its batch.
type Pipeline struct {
	graph          storage.GraphStore
	vectors        storage.VectorStore
	docs           storage.DocumentRepository
	pool           *ants.Pool
	graphProc      processor
	embeddingProc  processor
	parsers        *Parsers
	tracker        *tracker
	locks          *docLocks
	maxFiles       int
	maxFileSize    int64
	embedBatchSize int
	attempts       int
	retryDelay     time.Duration
	retention      time.Duration
	onCommit       func(*core.Document)
	onPurge        func(core.DocumentID)
	running        sync.WaitGroup
	logger         *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets how many files are processed concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithParsers replaces the parser registry.
func WithParsers(parsers *Parsers) Option {
	return func(p *Pipeline) error {
		if parsers == nil {
			return fmt.Errorf("parsers must not be nil")
		}
		p.parsers = parsers
		return nil
	}
}

// WithLimits sets the maximum number of files per batch and bytes per file.
func WithLimits(maxFiles int, maxFileSize int64) Option {
	return func(p *Pipeline) error {
		if maxFiles < 1 || maxFileSize < 1 {
			return fmt.Errorf("limits must be positive, got %d files and %d bytes", maxFiles, maxFileSize)
		}
		p.maxFiles = maxFiles
		p.maxFileSize = maxFileSize
		return nil
	}
}

// WithEmbedBatchSize sets how many chunks are embedded per request.
func WithEmbedBatchSize(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("embed batch size must be positive, got %d", n)
		}
		p.embedBatchSize = n
		return nil
	}
}

// WithRetry sets the attempts and base backoff for calls to the AI services.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(p *Pipeline) error {
		if attempts < 1 {
			return fmt.Errorf("attempts must be positive, got %d", attempts)
		}
		p.attempts = attempts
		p.retryDelay = delay
		return nil
	}
}

// WithBatchRetention sets how long batch results stay queryable.
func WithBatchRetention(d time.Duration) Option {
	return func(p *Pipeline) error {
		p.retention = d
		return nil
	}
}

// WithCommitHook sets a function called after each document commits.
func WithCommitHook(fn func(*core.Document)) Option {
	return func(p *Pipeline) error {
		p.onCommit = fn
		return nil
	}
}

// WithPurgeHook sets a function called after a registered document is removed
// and after every rollback.
func WithPurgeHook(fn func(core.DocumentID)) Option {
	return func(p *Pipeline) error {
		p.onPurge = fn
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	graph storage.GraphStore,
	vectors storage.VectorStore,
	docs storage.DocumentRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if graph == nil {
		return nil, ErrGraphStoreRequired
	}
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if docs == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := max(runtime.NumCPU()/2, 1)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		graph:          graph,
		vectors:        vectors,
		docs:           docs,
		pool:           pool,
		parsers:        NewParsers(),
		locks:          newDocLocks(),
		maxFiles:       DefaultMaxFiles,
		maxFileSize:    DefaultMaxFileSize,
		embedBatchSize: defaultEmbedBatchSize,
		attempts:       defaultAttempts,
		retryDelay:     defaultRetryDelay,
		logger:         slog.Default().With("component", "ingestion"),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.tracker = newTracker(p.retention)

	// Create processors after options are applied (so they get final config)
	graphProc, err := newGraphProcessor(graph, provider.EntityExtractor(), p.attempts, p.retryDelay, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	embeddingProc, err := newEmbeddingProcessor(vectors, provider.Embedder(), p.embedBatchSize, p.attempts, p.retryDelay, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	p.graphProc = graphProc
	p.embeddingProc = embeddingProc

	return p, nil
}

// Parsers returns the parser registry.
func (p *Pipeline) Parsers() *Parsers {
	return p.parsers
}

// MaxFileSize returns the per-file size limit in bytes.
func (p *Pipeline) MaxFileSize() int64 {
	return p.maxFileSize
}

// MaxFiles returns the per-batch file limit.
func (p *Pipeline) MaxFiles() int {
	return p.maxFiles
}

// Validate checks a batch before any processing begins. It returns a
// *core.ValidationError describing the first problem.
func (p *Pipeline) Validate(files []File, opts Options) error {
	if len(files) == 0 {
		return core.NewValidationError("files", "at least one file is required")
	}
	if len(files) > p.maxFiles {
		return core.NewValidationError("files", fmt.Sprintf("at most %d files per batch", p.maxFiles))
	}
	for _, f := range files {
		if strings.TrimSpace(f.Name) == "" {
			return core.NewValidationError("files", "filename is required")
		}
		if !p.parsers.Accepts(f.Name) {
			return core.NewValidationError("files", fmt.Sprintf("%s: unsupported file extension %q", f.Name, filepath.Ext(f.Name)))
		}
		if int64(len(f.Data)) > p.maxFileSize {
			return &core.ValidationError{
				Field:  "files",
				Reason: fmt.Sprintf("%s exceeds %d bytes", f.Name, p.maxFileSize),
				Code:   "FILE_TOO_LARGE",
			}
		}
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	if opts.BatchID != "" && p.tracker.exists(opts.BatchID) {
		return core.NewValidationError("batch_id", "already in use")
	}
	return nil
}

// Ingest processes a batch and returns its result. Once validation passes the
// batch runs to completion even if ctx is cancelled.
func (p *Pipeline) Ingest(ctx context.Context, files []File, opts Options) (*Batch, error) {
	id, err := p.begin(files, &opts)
	if err != nil {
		return nil, err
	}
	p.run(context.WithoutCancel(ctx), id, files, opts)
	return p.tracker.get(id)
}

// Submit starts a batch in the background and returns its id for Status.
func (p *Pipeline) Submit(ctx context.Context, files []File, opts Options) (string, error) {
	id, err := p.begin(files, &opts)
	if err != nil {
		return "", err
	}
	go p.run(context.WithoutCancel(ctx), id, files, opts)
	return id, nil
}

// Status returns the progress or result of a batch.
func (p *Pipeline) Status(batchID string) (*Batch, error) {
	return p.tracker.get(batchID)
}

func (p *Pipeline) begin(files []File, opts *Options) (string, error) {
	if err := p.Validate(files, *opts); err != nil {
		return "", err
	}
	if opts.BatchID == "" {
		opts.BatchID = uuid.NewString()
	}
	// Validate's check can lose a race with a concurrent batch; the claim cannot.
	if err := p.tracker.start(opts.BatchID, len(files), time.Now()); err != nil {
		return "", core.NewValidationError("batch_id", "already in use")
	}
	p.running.Add(1)
	return opts.BatchID, nil
}

// run processes every file of a batch on the pool and waits for all of them.
func (p *Pipeline) run(ctx context.Context, batchID string, files []File, opts Options) {
	defer p.running.Done()
	logger := p.logger.With("batch_id", batchID)
	logger.Info("ingesting batch", "files", len(files))

	outcomes := make([]core.IngestionOutcome, len(files))
	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			outcome := p.ingestFile(ctx, f, opts)
			outcomes[i] = outcome
			p.tracker.update(batchID, func(b *Batch) { b.record(outcome) })
		}
		if err := p.pool.Submit(task); err != nil {
			wg.Done()
			outcome := core.IngestionOutcome{Filename: f.Name}
			fail(&outcome, fmt.Errorf("worker pool: %w", err))
			outcomes[i] = outcome
			p.tracker.update(batchID, func(b *Batch) { b.record(outcome) })
		}
	}
	wg.Wait()

	var result *Batch
	p.tracker.update(batchID, func(b *Batch) {
		b.finish(time.Now(), outcomes)
		result = b.clone()
	})
	if result != nil {
		logger.Info("batch finished",
			"status", result.Status,
			"successful", result.SuccessfulFiles,
			"failed", result.FailedFiles,
			"skipped", result.SkippedFiles)
	}
}

// ingestFile runs the per-document state machine for one file.
func (p *Pipeline) ingestFile(ctx context.Context, f File, opts Options) (outcome core.IngestionOutcome) {
	start := time.Now()
	checksum := core.DocumentIDFromContent(f.Data)
	docID := f.ID
	if docID == "" {
		docID = checksum
	}
	outcome = core.IngestionOutcome{
		Filename:   f.Name,
		DocumentID: docID,
		Checksum:   string(checksum),
	}
	defer func() {
		outcome.ProcessingTime = time.Since(start)
	}()
	logger := p.logger.With("document_id", docID, "filename", f.Name)

	unlock := p.locks.lock(docID)
	defer unlock()

	committed, err := p.docs.HasDocument(ctx, docID)
	if err != nil {
		fail(&outcome, err)
		return outcome
	}
	if committed && !opts.OverwriteExisting {
		logger.Info("document already ingested, skipping")
		outcome.Status = core.OutcomeSkipped
		return outcome
	}

	parser, err := p.parsers.Lookup(f.Name)
	if err != nil {
		logger.Warn("no parser for file", "err", err)
		fail(&outcome, err)
		return outcome
	}
	text, err := parser.Parse(ctx, f.Data)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyDocument
	}
	if err != nil {
		logger.Warn("error parsing file", "err", err)
		fail(&outcome, err)
		return outcome
	}
	chunks := Chunk(docID, text, opts.ChunkSize, opts.ChunkOverlap)

	// Unregister first so readers stop seeing the old generation, then clear
	// any artifacts left by it or by an interrupted run.
	err = p.purge(ctx, docID)
	if committed {
		p.purged(docID)
	}
	if err != nil {
		logger.Error("error purging previous artifacts", "err", err)
		fail(&outcome, err)
		return outcome
	}

	stats, err := p.write(ctx, docID, chunks, opts)
	if err != nil {
		logger.Error("error writing artifacts, rolling back", "err", err)
		p.rollback(ctx, docID, logger)
		fail(&outcome, err)
		return outcome
	}

	doc := &core.Document{
		ID:                docID,
		Title:             title(f.Name, text),
		Filename:          f.Name,
		Text:              text,
		Checksum:          string(checksum),
		Language:          opts.Language,
		ChunkCount:        stats.Chunks,
		EntityCount:       stats.Entities,
		RelationshipCount: stats.Relationships,
		EmbeddingCount:    stats.Embeddings,
		IngestedAt:        time.Now().UTC(),
	}
	if err := p.docs.PutDocument(ctx, doc); err != nil {
		logger.Error("error registering document, rolling back", "err", err)
		p.rollback(ctx, docID, logger)
		fail(&outcome, err)
		return outcome
	}

	outcome.Status = core.OutcomeCompleted
	outcome.Stats = stats
	logger.Info("document ingested",
		"chunks", stats.Chunks,
		"entities", stats.Entities,
		"relationships", stats.Relationships,
		"embeddings", stats.Embeddings)
	if p.onCommit != nil {
		p.onCommit(doc)
	}
	return outcome
}

// write runs the enabled processors concurrently. Both must succeed.
func (p *Pipeline) write(ctx context.Context, doc core.DocumentID, chunks []core.Chunk, opts Options) (core.IngestionStats, error) {
	var graphStats, vectorStats core.IngestionStats
	g, gctx := errgroup.WithContext(ctx)
	if opts.ExtractEntities {
		g.Go(func() error {
			var err error
			graphStats, err = p.graphProc.process(gctx, doc, chunks)
			return err
		})
	}
	if opts.CreateEmbeddings {
		g.Go(func() error {
			var err error
			vectorStats, err = p.embeddingProc.process(gctx, doc, chunks)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return core.IngestionStats{}, err
	}
	return core.IngestionStats{
		Chunks:        len(chunks),
		Entities:      graphStats.Entities,
		Relationships: graphStats.Relationships,
		Embeddings:    vectorStats.Embeddings,
	}, nil
}

// purge removes the registry entry and every artifact of doc.
func (p *Pipeline) purge(ctx context.Context, doc core.DocumentID) error {
	if err := p.docs.DeleteDocument(ctx, doc); err != nil {
		return err
	}
	if err := p.graphProc.purge(ctx, doc); err != nil {
		return err
	}
	return p.embeddingProc.purge(ctx, doc)
}

// rollback removes whatever a failed run wrote. Cleanup failures are logged;
// the document stays unregistered either way.
func (p *Pipeline) rollback(ctx context.Context, doc core.DocumentID, logger *slog.Logger) {
	if err := p.graphProc.purge(ctx, doc); err != nil {
		logger.Error("error rolling back graph", "err", err)
	}
	if err := p.embeddingProc.purge(ctx, doc); err != nil {
		logger.Error("error rolling back embeddings", "err", err)
	}
	p.purged(doc)
}

func (p *Pipeline) purged(doc core.DocumentID) {
	if p.onPurge != nil {
		p.onPurge(doc)
	}
}

// title returns the first markdown heading of text, or the file name without
// its extension.
func title(filename, text string) string {
	for _, line := range strings.SplitN(text, "\n", 20) {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Release waits for running batches, then releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	p.running.Wait()
	if p.pool != nil {
		p.pool.Release()
	}
}
