package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/patrickmn/go-cache"
	"github.com/poiesic/sibyl/core"
)

const (
	defaultSourceTimeout = 10 * time.Second
	defaultMaxResults    = 10
	defaultPoolSize      = 16
	defaultCacheSize     = 1000
)

// Option configures a Coordinator.
type Option func(*Coordinator) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// WithTimeouts sets the independent per-source timeouts.
func WithTimeouts(graph, vector time.Duration) Option {
	return func(c *Coordinator) error {
		if graph <= 0 || vector <= 0 {
			return errors.New("source timeouts must be positive")
		}
		c.timeouts[core.SourceGraph] = graph
		c.timeouts[core.SourceVector] = vector
		return nil
	}
}

// WithMaxResults sets the default knowledge context size.
func WithMaxResults(max int) Option {
	return func(c *Coordinator) error {
		if max <= 0 {
			return errors.New("max results must be positive")
		}
		c.maxResults = max
		return nil
	}
}

// WithPoolSize sets the number of workers running source searches.
func WithPoolSize(size int) Option {
	return func(c *Coordinator) error {
		if size < 2 {
			return errors.New("pool size must be at least 2")
		}
		c.poolSize = size
		return nil
	}
}

// WithCache enables result caching for ttl, holding at most size queries.
// Only retrievals where both sources succeeded are cached.
func WithCache(ttl time.Duration, size int) Option {
	return func(c *Coordinator) error {
		if ttl <= 0 {
			c.cache = nil
			return nil
		}
		if size <= 0 {
			size = defaultCacheSize
		}
		c.cache = cache.New(ttl, ttl)
		c.cacheSize = size
		return nil
	}
}

// Coordinator fans a query out to the graph and vector sources concurrently
// and merges their answers into one KnowledgeContext.
type Coordinator struct {
	sources    []Source
	timeouts   map[core.SourceKind]time.Duration
	maxResults int
	poolSize   int
	pool       *ants.Pool
	cache      *cache.Cache
	cacheSize  int
	logger     *slog.Logger
}

// NewCoordinator creates a coordinator over the two sources.
func NewCoordinator(graph, vector Source, opts ...Option) (*Coordinator, error) {
	if graph == nil {
		return nil, ErrGraphStoreRequired
	}
	if vector == nil {
		return nil, ErrVectorStoreRequired
	}

	c := &Coordinator{
		sources: []Source{graph, vector},
		timeouts: map[core.SourceKind]time.Duration{
			core.SourceGraph:  defaultSourceTimeout,
			core.SourceVector: defaultSourceTimeout,
		},
		maxResults: defaultMaxResults,
		poolSize:   defaultPoolSize,
		logger:     slog.Default().With("component", "retrieval"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	// Submit fails fast with ants.ErrPoolOverload instead of waiting for a worker.
	pool, err := ants.NewPool(c.poolSize, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	c.pool = pool
	return c, nil
}

// Close stops the worker pool.
func (c *Coordinator) Close() {
	c.pool.Release()
}

// Invalidate drops every cached result. Called when the stores change.
func (c *Coordinator) Invalidate() {
	if c.cache != nil {
		c.cache.Flush()
	}
}

// Retrieve returns the knowledge context for query holding at most maxResults
// entries; zero or less uses the configured default. Source failures are
// reported through the context's flags and never returned as errors.
func (c *Coordinator) Retrieve(ctx context.Context, query string, maxResults int) (*core.KnowledgeContext, error) {
	return c.RetrieveWithMonitor(ctx, query, maxResults, nil)
}

type sourceResult struct {
	kind     core.SourceKind
	evidence []core.Evidence
	err      error
	elapsed  time.Duration
}

// RetrieveWithMonitor is Retrieve with stage callbacks.
func (c *Coordinator) RetrieveWithMonitor(ctx context.Context, query string, maxResults int, monitor Monitor) (*core.KnowledgeContext, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, core.NewValidationError("query", "must not be empty")
	}
	if maxResults <= 0 {
		maxResults = c.maxResults
	}

	monitor.Start(query)
	key := cacheKey(query, maxResults)
	if kc, ok := c.cached(key); ok {
		monitor.CacheHit(query)
		monitor.Finish(kc)
		return kc, nil
	}

	results := make(chan sourceResult, len(c.sources))
	pending := make(map[core.SourceKind]bool, len(c.sources))
	var longest time.Duration
	for _, src := range c.sources {
		timeout := c.timeouts[src.Kind()]
		longest = max(longest, timeout)
		pending[src.Kind()] = true

		err := c.pool.Submit(func() {
			sctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			start := time.Now()
			evidence, err := src.Search(sctx, query, maxResults)
			if err == nil && sctx.Err() != nil {
				err = sctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w after %s", ErrSourceTimeout, timeout)
			}
			results <- sourceResult{kind: src.Kind(), evidence: evidence, err: err, elapsed: time.Since(start)}
		})
		if errors.Is(err, ants.ErrPoolOverload) {
			err = ErrSourceBusy
		}
		if err != nil {
			results <- sourceResult{kind: src.Kind(), err: err}
		}
	}

	// Sources that ignore their context still cannot hold up the answer
	grace := time.NewTimer(longest + 100*time.Millisecond)
	defer grace.Stop()

	kc := &core.KnowledgeContext{}
	var sets [][]core.Evidence
	for len(pending) > 0 {
		select {
		case r := <-results:
			delete(pending, r.kind)
			monitor.SourceDone(r.kind, r.evidence, r.err, r.elapsed)
			if r.err != nil {
				c.markFailed(kc, &SourceError{Kind: r.kind, Err: r.err})
				continue
			}
			sets = append(sets, r.evidence)
		case <-grace.C:
			for kind := range pending {
				c.markFailed(kc, &SourceError{Kind: kind, Err: ErrSourceTimeout})
				monitor.SourceDone(kind, nil, ErrSourceTimeout, longest)
			}
			pending = nil
		case <-ctx.Done():
			for kind := range pending {
				c.markFailed(kc, &SourceError{Kind: kind, Err: ctx.Err()})
			}
			pending = nil
		}
	}

	kc.Evidence = Merge(maxResults, sets...)
	if kc.Evidence == nil {
		kc.Evidence = []core.Evidence{}
	}
	if !kc.GraphFailed && !kc.VectorFailed {
		c.store(key, kc)
	}

	c.logger.Debug("retrieval finished",
		"evidence", len(kc.Evidence),
		"graph_failed", kc.GraphFailed,
		"vector_failed", kc.VectorFailed)
	monitor.Finish(kc)
	return kc, nil
}

func (c *Coordinator) markFailed(kc *core.KnowledgeContext, err *SourceError) {
	switch err.Kind {
	case core.SourceGraph:
		kc.GraphFailed = true
	case core.SourceVector:
		kc.VectorFailed = true
	}
	c.logger.Warn("relevance source failed", "source", err.Kind, "err", err.Err)
}

func cacheKey(query string, maxResults int) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " ")) + "\x00" + strconv.Itoa(maxResults)
}

func (c *Coordinator) cached(key string) (*core.KnowledgeContext, bool) {
	if c.cache == nil {
		return nil, false
	}
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	kc := v.(core.KnowledgeContext)
	kc.Evidence = slices.Clone(kc.Evidence)
	return &kc, true
}

func (c *Coordinator) store(key string, kc *core.KnowledgeContext) {
	if c.cache == nil {
		return
	}
	if c.cache.ItemCount() >= c.cacheSize {
		c.cache.DeleteExpired()
		if c.cache.ItemCount() >= c.cacheSize {
			return
		}
	}
	entry := *kc
	entry.Evidence = slices.Clone(kc.Evidence)
	c.cache.Set(key, entry, cache.DefaultExpiration)
}
