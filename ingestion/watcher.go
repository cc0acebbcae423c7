package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/storage"
)

// DefaultSettle is how long a file must be quiet before it is ingested.
const DefaultSettle = 500 * time.Millisecond

// Watcher ingests files as they appear or change in a directory. Each file is
// one document whose ID derives from its path, so an edited file replaces its
// previous generation. Files whose content matches the registered document
// are left alone.
type Watcher struct {
	pipeline *Pipeline
	watcher  *fsnotify.Watcher
	opts     Options
	settle   time.Duration
	logger   *slog.Logger
	// OnBatch, if set, receives the result of every ingested file.
	OnBatch func(*Batch)
}

// NewWatcher creates a watcher feeding pipeline with opts.
func NewWatcher(pipeline *Pipeline, opts Options) (*Watcher, error) {
	if pipeline == nil {
		return nil, errors.New("pipeline required")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		pipeline: pipeline,
		watcher:  w,
		opts:     opts,
		settle:   DefaultSettle,
		logger:   pipeline.logger.With("component", "watcher"),
	}, nil
}

// SetSettle changes the quiet period applied before ingesting a file.
func (w *Watcher) SetSettle(d time.Duration) {
	w.settle = d
}

// Watch monitors dir until ctx is done. Files with extensions the pipeline
// does not accept are ignored.
func (w *Watcher) Watch(ctx context.Context, dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info("watching directory", "dir", dir)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.settle)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.pipeline.Parsers().Accepts(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.settle)
		case <-timer.C:
			for path := range pending {
				w.ingest(ctx, path)
			}
			clear(pending)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("error reading file", "path", path, "err", err)
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	id := core.DocumentIDFromSource(abs)

	current, err := w.pipeline.docs.GetDocument(ctx, id)
	switch {
	case err == nil && current.Checksum == string(core.DocumentIDFromContent(data)):
		w.logger.Debug("file unchanged", "path", path)
		return
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		w.logger.Warn("error looking up document", "path", path, "err", err)
		return
	}

	opts := w.opts
	opts.BatchID = ""
	opts.OverwriteExisting = true

	batch, err := w.pipeline.Ingest(ctx, []File{{ID: id, Name: filepath.Base(path), Data: data}}, opts)
	if err != nil {
		w.logger.Warn("file rejected", "path", path, "err", err)
		return
	}
	if w.OnBatch != nil {
		w.OnBatch(batch)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
