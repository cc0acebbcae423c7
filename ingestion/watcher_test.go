package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/sibyl/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startWatcher runs a watcher on dir until the test ends and returns a
// function listing the outcomes it has reported so far.
func startWatcher(t *testing.T, p *Pipeline, dir string) func() []core.IngestionOutcome {
	t.Helper()
	w, err := NewWatcher(p, smallChunks())
	require.NoError(t, err)
	w.SetSettle(20 * time.Millisecond)

	var mu sync.Mutex
	var outcomes []core.IngestionOutcome
	w.OnBatch = func(b *Batch) {
		mu.Lock()
		defer mu.Unlock()
		outcomes = append(outcomes, b.Outcomes...)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx, dir) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
		w.Close()
	})
	// give the watch a moment to register
	time.Sleep(50 * time.Millisecond)

	return func() []core.IngestionOutcome {
		mu.Lock()
		defer mu.Unlock()
		return append([]core.IngestionOutcome(nil), outcomes...)
	}
}

func TestWatcher_IngestsNewFiles(t *testing.T) {
	p, stores, _ := setupPipeline(t)
	dir := t.TempDir()
	seen := startWatcher(t, p, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "printer.txt"), []byte(printerGuide), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.exe"), []byte("MZ"), 0o644))

	assert.Eventually(t, func() bool {
		got := seen()
		return len(got) > 0 && got[len(got)-1].Status == core.OutcomeCompleted
	}, 5*time.Second, 10*time.Millisecond)

	docs, err := stores.Documents.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	abs, err := filepath.Abs(filepath.Join(dir, "printer.txt"))
	require.NoError(t, err)
	assert.Equal(t, core.DocumentIDFromSource(abs), docs[0].ID)
	assert.Equal(t, string(core.DocumentIDFromContent([]byte(printerGuide))), docs[0].Checksum)

	for _, o := range seen() {
		assert.Equal(t, "printer.txt", o.Filename)
	}
}

func TestWatcher_EditReplacesDocument(t *testing.T) {
	p, stores, _ := setupPipeline(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "router.md")
	seen := startWatcher(t, p, dir)

	countCompleted := func() int {
		count := 0
		for _, o := range seen() {
			if o.Status == core.OutcomeCompleted {
				count++
			}
		}
		return count
	}
	completed := func(n int) func() bool {
		return func() bool { return countCompleted() >= n }
	}

	require.NoError(t, os.WriteFile(path, []byte(routerManual), 0o644))
	require.Eventually(t, completed(1), 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(printerGuide), 0o644))
	require.Eventually(t, completed(2), 5*time.Second, 10*time.Millisecond)

	docs, err := stores.Documents.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1, "the edit replaces the earlier version")
	assert.Equal(t, string(core.DocumentIDFromContent([]byte(printerGuide))), docs[0].Checksum)

	stale, err := stores.Graph.FindEntities(ctx, []string{"modem"}, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
	count, err := stores.Vectors.CountEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, docs[0].EmbeddingCount, count)

	// Rewriting identical content is not ingested again.
	require.NoError(t, os.WriteFile(path, []byte(printerGuide), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 2, countCompleted())
}

func TestNewWatcher_ValidatesOptions(t *testing.T) {
	p, _, _ := setupPipeline(t)
	_, err := NewWatcher(p, Options{})
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = NewWatcher(nil, DefaultOptions())
	assert.Error(t, err)
}
