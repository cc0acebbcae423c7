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

package sibyl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/sibyl/ai"
	"github.com/poiesic/sibyl/ai/openai"
	"github.com/poiesic/sibyl/chat"
	"github.com/poiesic/sibyl/config"
	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/generation"
	"github.com/poiesic/sibyl/ingestion"
	"github.com/poiesic/sibyl/retrieval"
	"github.com/poiesic/sibyl/storage/badger"
)

// Service wires storage, AI services, generation, retrieval, chat and ingestion
// into one unit with an ordered shutdown.
type Service struct {
	cfg         *config.Config
	stores      *badger.Stores
	provider    ai.AIProvider
	registry    *generation.Registry
	generator   *generation.Orchestrator
	coordinator *retrieval.Coordinator
	chat        *chat.Orchestrator
	pipeline    *ingestion.Pipeline
	started     time.Time
	logger      *slog.Logger
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	provider ai.AIProvider
	factory  generation.Factory
	parsers  *ingestion.Parsers
	logger   *slog.Logger
}

// WithAIProvider replaces the langchaingo embedding and extraction services.
func WithAIProvider(provider ai.AIProvider) Option {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// WithGeneratorFactory replaces the langchaingo generator factory.
func WithGeneratorFactory(factory generation.Factory) Option {
	return func(o *serviceOptions) {
		o.factory = factory
	}
}

// WithParsers installs a parser registry, e.g. one with a PDF parser registered.
func WithParsers(parsers *ingestion.Parsers) Option {
	return func(o *serviceOptions) {
		o.parsers = parsers
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// New validates cfg and builds the service. Everything opened before a failure
// is closed again.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (svc *Service, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &serviceOptions{
		factory: generation.NewLLMGenerator,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger

	s := &Service{cfg: cfg, started: time.Now(), logger: logger.With("component", "sibyl")}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	backend, err := badger.OpenBackend(cfg.Storage.DataDir, cfg.Storage.InMemory)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	s.stores = badger.NewStores(backend)

	s.provider = options.provider
	if s.provider == nil {
		s.provider, err = openai.NewProvider(cfg.AIServiceConfig())
		if err != nil {
			return nil, fmt.Errorf("create ai provider: %w", err)
		}
	}

	providers, err := cfg.GenerationProviders()
	if err != nil {
		return nil, err
	}
	s.registry = generation.NewRegistry(options.factory,
		generation.WithSettings(cfg.Settings()),
		generation.WithRegistryLogger(logger.With("component", "provider-registry")))
	if _, err := s.registry.Update(ctx, providers); err != nil {
		return nil, fmt.Errorf("configure providers: %w", err)
	}
	s.generator = generation.NewOrchestrator(s.registry,
		generation.WithLogger(logger.With("component", "generation")))

	rc := cfg.Retrieval
	graphOpts := []retrieval.GraphOption{
		retrieval.WithMinRelevance(rc.MinGraphRelevance),
		retrieval.WithGraphLogger(logger.With("component", "graph-source")),
	}
	if rc.HopDecay != nil {
		graphOpts = append(graphOpts, retrieval.WithHopDecay(*rc.HopDecay))
	}
	graphSource, err := retrieval.NewGraphSource(s.stores.Graph, s.stores.Documents, graphOpts...)
	if err != nil {
		return nil, err
	}
	vectorSource, err := retrieval.NewVectorSource(s.stores.Vectors, s.stores.Documents, s.provider.Embedder(),
		retrieval.WithSimilarityThreshold(float32(rc.SimilarityThreshold)),
		retrieval.WithVectorLogger(logger.With("component", "vector-source")))
	if err != nil {
		return nil, err
	}
	s.coordinator, err = retrieval.NewCoordinator(graphSource, vectorSource,
		retrieval.WithTimeouts(rc.GraphTimeout, rc.VectorTimeout),
		retrieval.WithMaxResults(rc.MaxResults),
		retrieval.WithPoolSize(rc.PoolSize),
		retrieval.WithCache(rc.CacheTTL, rc.CacheSize),
		retrieval.WithLogger(logger.With("component", "retrieval")))
	if err != nil {
		return nil, err
	}

	cc := cfg.Chat
	chatOpts := []chat.Option{
		chat.WithBudget(cc.Budget),
		chat.WithPromptSources(cc.PromptSources),
		chat.WithConversations(chat.NewConversationStore(cc.ConversationTTL, cc.MaxTurns, cc.MaxHistoryTokens)),
		chat.WithLogger(logger.With("component", "chat")),
	}
	if cc.SystemPrompt != "" {
		chatOpts = append(chatOpts, chat.WithSystemPrompt(cc.SystemPrompt))
	}
	s.chat, err = chat.NewOrchestrator(s.coordinator, s.generator, chatOpts...)
	if err != nil {
		return nil, err
	}

	ic := cfg.Ingestion
	parsers := options.parsers
	if parsers == nil {
		parsers = ingestion.NewParsers()
	}
	parsers.Restrict(ic.AllowedExtensions...)
	s.pipeline, err = ingestion.NewPipeline(s.stores.Graph, s.stores.Vectors, s.stores.Documents, s.provider,
		ingestion.WithPoolSize(ic.PoolSize),
		ingestion.WithLimits(ic.MaxFiles, ic.MaxFileSize),
		ingestion.WithEmbedBatchSize(ic.EmbedBatchSize),
		ingestion.WithRetry(ic.EmbedRetries, time.Second),
		ingestion.WithBatchRetention(ic.BatchRetention),
		ingestion.WithParsers(parsers),
		ingestion.WithCommitHook(func(doc *core.Document) {
			// Cached answers may predate the document.
			s.coordinator.Invalidate()
		}),
		ingestion.WithPurgeHook(func(core.DocumentID) {
			s.coordinator.Invalidate()
		}),
		ingestion.WithLogger(logger.With("component", "ingestion")))
	if err != nil {
		return nil, err
	}

	s.logger.Info("service ready",
		"data_dir", cfg.Storage.DataDir,
		"in_memory", cfg.Storage.InMemory,
		"providers", len(providers))
	return s, nil
}

// Close stops ingestion, releases the retrieval pool and the AI services, then
// closes storage. It is safe to call on a partially built service.
func (s *Service) Close() error {
	var errs []error
	if s.pipeline != nil {
		s.pipeline.Release()
	}
	if s.coordinator != nil {
		s.coordinator.Close()
	}
	if s.provider != nil {
		if err := s.provider.Close(); err != nil {
			s.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if s.stores != nil {
		if err := s.stores.Close(); err != nil {
			s.logger.Error("error closing storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config returns the configuration the service was built from.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Chat answers a chat request.
func (s *Service) Chat(ctx context.Context, req chat.Request) (*chat.Response, error) {
	return s.chat.Chat(ctx, req)
}

// Conversation returns the stored history of a conversation.
func (s *Service) Conversation(id string) (*core.Conversation, error) {
	return s.chat.Conversations().Get(id)
}

// DeleteConversation clears a conversation.
func (s *Service) DeleteConversation(id string) error {
	return s.chat.Conversations().Delete(id)
}

// Ingest processes a batch synchronously.
func (s *Service) Ingest(ctx context.Context, files []ingestion.File, opts ingestion.Options) (*ingestion.Batch, error) {
	return s.pipeline.Ingest(ctx, files, opts)
}

// Submit starts a batch in the background and returns its id.
func (s *Service) Submit(ctx context.Context, files []ingestion.File, opts ingestion.Options) (string, error) {
	return s.pipeline.Submit(ctx, files, opts)
}

// BatchStatus reports the progress of a batch.
func (s *Service) BatchStatus(batchID string) (*ingestion.Batch, error) {
	return s.pipeline.Status(batchID)
}

// Documents lists the committed documents.
func (s *Service) Documents(ctx context.Context) ([]*core.Document, error) {
	return s.stores.Documents.ListDocuments(ctx)
}

// Providers returns the configured generation providers with masked keys.
func (s *Service) Providers() ([]generation.Spec, uint64) {
	snap := s.registry.Current()
	specs := make([]generation.Spec, len(snap.Providers))
	for i, p := range snap.Providers {
		specs[i] = generation.SpecOf(p)
	}
	return specs, snap.Version
}

// UpdateProviders atomically replaces the provider configuration. In-flight
// requests finish on the configuration they started with.
func (s *Service) UpdateProviders(ctx context.Context, specs []generation.Spec) (uint64, error) {
	for i := range specs {
		if specs[i].TimeoutSeconds == 0 {
			specs[i].TimeoutSeconds = int(s.cfg.Generation.CallTimeout / time.Second)
		}
	}
	snap, err := s.registry.UpdateSpecs(ctx, specs)
	if err != nil {
		return 0, err
	}
	return snap.Version, nil
}

// FetchModels lists the models a server offers, either a configured provider
// or the server q describes. The call is bounded by the generation call timeout.
func (s *Service) FetchModels(ctx context.Context, q generation.ModelQuery) ([]string, error) {
	var backend generation.Backend
	if q.Provider != "" {
		for _, p := range s.registry.Current().Providers {
			if p.Name == q.Provider {
				backend = p.Backend
				break
			}
		}
		if backend == nil {
			return nil, core.NewValidationError("provider", fmt.Sprintf("no provider named %q", q.Provider))
		}
	} else {
		var err error
		if backend, err = q.Backend(); err != nil {
			return nil, core.NewValidationError("url", err.Error())
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Generation.CallTimeout)
	defer cancel()
	return generation.ListModels(ctx, s.registry.Settings().HTTPClient, backend)
}

// Pipeline returns the ingestion pipeline.
func (s *Service) Pipeline() *ingestion.Pipeline {
	return s.pipeline
}

// Stores returns the underlying stores.
func (s *Service) Stores() *badger.Stores {
	return s.stores
}

// Embedder returns the embedding service used for ingestion and retrieval.
func (s *Service) Embedder() ai.Embedder {
	return s.provider.Embedder()
}
