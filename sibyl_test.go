package sibyl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/sibyl/ai"
	"github.com/poiesic/sibyl/ai/mock"
	"github.com/poiesic/sibyl/chat"
	"github.com/poiesic/sibyl/config"
	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/generation"
	"github.com/poiesic/sibyl/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const routerManual = `# Router Reset

To reset the Router hold the Reset button for ten seconds.
The Firmware reloads after the reset.`

// testConfig is an in-memory configuration with the default vllm and ollama chain.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Storage.InMemory = true
	cfg.Storage.DataDir = ""
	cfg.Retrieval.SimilarityThreshold = 0.3
	cfg.Chat.PromptSources = 5
	cfg.Ingestion.PoolSize = 2
	cfg.Ingestion.EmbedRetries = 1
	return cfg
}

// mockFactory hands out one mock generator per provider name.
func mockFactory(gens map[string]*mock.MockGenerator) generation.Factory {
	return func(ctx context.Context, p generation.Provider, s generation.Settings) (ai.Generator, error) {
		g, ok := gens[p.Name]
		if !ok {
			g = mock.NewMockGenerator()
			gens[p.Name] = g
		}
		return g, nil
	}
}

func newTestService(t *testing.T, cfg *config.Config, gens map[string]*mock.MockGenerator) *Service {
	t.Helper()
	if gens == nil {
		gens = map[string]*mock.MockGenerator{}
	}
	svc, err := New(context.Background(), cfg,
		WithAIProvider(mock.NewMockProvider()),
		WithGeneratorFactory(mockFactory(gens)))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestNew(t *testing.T) {
	t.Run("on disk", func(t *testing.T) {
		cfg := testConfig()
		cfg.Storage.InMemory = false
		cfg.Storage.DataDir = filepath.Join(t.TempDir(), "db")

		svc := newTestService(t, cfg, nil)
		assert.NotNil(t, svc.Pipeline())
		assert.NotNil(t, svc.Stores())
		assert.NotNil(t, svc.Embedder())
		assert.Equal(t, cfg, svc.Config())

		_, err := os.Stat(cfg.Storage.DataDir)
		assert.NoError(t, err, "data directory created")
	})

	t.Run("data dir is a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

		cfg := testConfig()
		cfg.Storage.InMemory = false
		cfg.Storage.DataDir = path

		svc, err := New(context.Background(), cfg, WithAIProvider(mock.NewMockProvider()))
		assert.Error(t, err)
		assert.Nil(t, svc)
	})

	t.Run("invalid configuration", func(t *testing.T) {
		cfg := testConfig()
		cfg.Chat.PromptSources = 0

		_, err := New(context.Background(), cfg, WithAIProvider(mock.NewMockProvider()))
		assert.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("factory failure closes storage", func(t *testing.T) {
		factory := func(ctx context.Context, p generation.Provider, s generation.Settings) (ai.Generator, error) {
			return nil, errors.New("no such model")
		}
		_, err := New(context.Background(), testConfig(),
			WithAIProvider(mock.NewMockProvider()),
			WithGeneratorFactory(factory))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configure providers")
	})

	t.Run("allowed extensions", func(t *testing.T) {
		cfg := testConfig()
		cfg.Ingestion.AllowedExtensions = []string{".md"}

		svc := newTestService(t, cfg, nil)
		assert.Equal(t, []string{".md"}, svc.Pipeline().Parsers().Extensions())
	})
}

func TestService_IngestThenChat(t *testing.T) {
	gens := map[string]*mock.MockGenerator{}
	svc := newTestService(t, testConfig(), gens)
	ctx := context.Background()

	batch, err := svc.Ingest(ctx, []ingestion.File{{Name: "router.md", Data: []byte(routerManual)}}, ingestion.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, ingestion.BatchCompleted, batch.Status)
	doc := batch.Outcomes[0].DocumentID
	require.NotEmpty(t, doc)

	docs, err := svc.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Router Reset", docs[0].Title)

	resp, err := svc.Chat(ctx, chat.Request{Message: "How do I reset the router?"})
	require.NoError(t, err)
	assert.Equal(t, "vllm", resp.Provider, "first provider in the chain answered")
	assert.NotEmpty(t, resp.ConversationID)
	assert.False(t, resp.GraphFailed)
	assert.False(t, resp.VectorFailed)
	assert.Greater(t, resp.Confidence, 0.5)

	kinds := map[string]bool{}
	for _, src := range resp.Sources {
		kinds[src.Type] = true
		assert.Equal(t, doc, src.DocumentID)
		assert.Equal(t, "Router Reset", src.Title)
	}
	assert.True(t, kinds["graph"], "graph evidence returned")
	assert.True(t, kinds["vector"], "vector evidence returned")

	conv, err := svc.Conversation(resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, core.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, core.RoleAssistant, conv.Messages[1].Role)

	require.NoError(t, svc.DeleteConversation(resp.ConversationID))
	_, err = svc.Conversation(resp.ConversationID)
	assert.ErrorIs(t, err, chat.ErrConversationNotFound)
}

func TestService_DefaultConfiguration(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.InMemory = true
	cfg.Storage.DataDir = ""
	svc := newTestService(t, cfg, nil)
	ctx := context.Background()

	// Short notes, so the question clears the default similarity threshold.
	var files []ingestion.File
	for _, model := range []string{"alpha", "bravo", "charlie", "delta"} {
		files = append(files, ingestion.File{
			Name: model + ".md",
			Data: []byte(fmt.Sprintf("# Router Reset\n\nReset the Router. Model %s.", model)),
		})
	}
	batch, err := svc.Ingest(ctx, files, ingestion.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, len(files), batch.SuccessfulFiles)

	resp, err := svc.Chat(ctx, chat.Request{Message: "Reset the router"})
	require.NoError(t, err)
	require.Len(t, resp.Sources, chat.DefaultMaxSources, "sources fill max_sources, not just the prompted entries")

	kinds := map[string]bool{}
	for _, src := range resp.Sources {
		kinds[src.Type] = true
	}
	assert.True(t, kinds["graph"], "graph evidence returned")
	assert.True(t, kinds["vector"], "vector evidence returned")
	assert.Zero(t, resp.Sources[len(resp.Sources)-1].Citation, "entries past the prompt carry no marker")
}

func TestService_CommitInvalidatesCache(t *testing.T) {
	svc := newTestService(t, testConfig(), nil)
	ctx := context.Background()
	req := chat.Request{Message: "How do I reset the router?"}

	before, err := svc.Chat(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, before.Sources, "nothing ingested yet")

	_, err = svc.Ingest(ctx, []ingestion.File{{Name: "router.md", Data: []byte(routerManual)}}, ingestion.DefaultOptions())
	require.NoError(t, err)

	after, err := svc.Chat(ctx, req)
	require.NoError(t, err)
	assert.NotEmpty(t, after.Sources, "cached empty result was dropped on commit")
}

func TestService_RemovedDocumentLeavesCache(t *testing.T) {
	provider := mock.NewMockProvider().(*mock.MockProvider)
	svc, err := New(context.Background(), testConfig(),
		WithAIProvider(provider),
		WithGeneratorFactory(mockFactory(map[string]*mock.MockGenerator{})))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	ctx := context.Background()
	files := []ingestion.File{{Name: "router.md", Data: []byte(routerManual)}}
	req := chat.Request{Message: "How do I reset the router?"}

	_, err = svc.Ingest(ctx, files, ingestion.DefaultOptions())
	require.NoError(t, err)
	before, err := svc.Chat(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, before.Sources)

	// A failed overwrite removes the old generation and registers nothing.
	provider.GetMockEmbedder().EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("embedding service down")
	}
	opts := ingestion.DefaultOptions()
	opts.OverwriteExisting = true
	batch, err := svc.Ingest(ctx, files, opts)
	require.NoError(t, err)
	require.Equal(t, 1, batch.FailedFiles)
	docs, err := svc.Documents(ctx)
	require.NoError(t, err)
	require.Empty(t, docs)

	after, err := svc.Chat(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, after.Sources, "removed document still served from the retrieval cache")
}

func TestService_Fallback(t *testing.T) {
	vllm := mock.NewMockGenerator()
	vllm.GenerateFunc = func(ctx context.Context, messages []core.Message) (string, error) {
		return "", errors.New("connection refused")
	}
	gens := map[string]*mock.MockGenerator{"vllm": vllm}
	svc := newTestService(t, testConfig(), gens)

	resp, err := svc.Chat(context.Background(), chat.Request{Message: "Is the printer online?"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", resp.Provider)
	assert.Equal(t, "llama3.1:8b", resp.ModelUsed)
	assert.Equal(t, 1, vllm.CallCount())
}

func TestService_Providers(t *testing.T) {
	svc := newTestService(t, testConfig(), nil)
	ctx := context.Background()

	specs, version := svc.Providers()
	require.Len(t, specs, 2)
	assert.Equal(t, uint64(1), version)

	specs = append(specs, generation.Spec{
		Name: "cloud", Kind: "openai", Priority: 3, Enabled: true, APIKey: "sk-abcdefghijkl", Model: "gpt-4o-mini",
	})
	version, err := svc.UpdateProviders(ctx, specs)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)

	specs, _ = svc.Providers()
	require.Len(t, specs, 3)
	assert.Equal(t, "sk-a****ijkl", specs[2].APIKey, "keys are masked")
	assert.Equal(t, 30, specs[2].TimeoutSeconds, "call timeout applied")

	_, err = svc.UpdateProviders(ctx, []generation.Spec{{Name: "bad", Kind: "gemini", Priority: 1, Enabled: true, Model: "m"}})
	require.Error(t, err)
	_, version = svc.Providers()
	assert.Equal(t, uint64(2), version, "failed update leaves the snapshot")
}

func TestService_NoEnabledProvider(t *testing.T) {
	provider := mock.NewMockProvider().(*mock.MockProvider)
	svc, err := New(context.Background(), testConfig(),
		WithAIProvider(provider),
		WithGeneratorFactory(mockFactory(map[string]*mock.MockGenerator{})))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	ctx := context.Background()

	specs, _ := svc.Providers()
	for i := range specs {
		specs[i].Enabled = false
	}
	_, err = svc.UpdateProviders(ctx, specs)
	require.NoError(t, err)
	provider.GetMockEmbedder().Reset()

	_, err = svc.Chat(ctx, chat.Request{Message: "How do I reset the router?"})
	var cfgErr *generation.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Zero(t, provider.GetMockEmbedder().CallCount(), "no embedding call before the configuration error")
}

func TestService_Health(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		svc := newTestService(t, testConfig(), nil)
		report := svc.Health(context.Background(), time.Second)

		assert.Equal(t, HealthHealthy, report.Status)
		assert.Equal(t, HealthHealthy, report.Components["graph_store"].Status)
		assert.Equal(t, HealthHealthy, report.Components["vector_store"].Status)
		assert.Equal(t, HealthHealthy, report.Components["embedding_service"].Status)
		require.Len(t, report.Providers, 2)
		assert.Equal(t, uint64(1), report.ProviderVersion)
	})

	t.Run("degraded when a provider is down", func(t *testing.T) {
		down := mock.NewMockGenerator()
		down.PingFunc = func(ctx context.Context) error { return errors.New("connection refused") }
		svc := newTestService(t, testConfig(), map[string]*mock.MockGenerator{"ollama": down})

		report := svc.Health(context.Background(), time.Second)
		assert.Equal(t, HealthDegraded, report.Status)
		assert.Equal(t, generation.StatusUnhealthy, report.Providers[1].Status)
	})

	t.Run("unhealthy when every provider is down", func(t *testing.T) {
		down := func() *mock.MockGenerator {
			g := mock.NewMockGenerator()
			g.PingFunc = func(ctx context.Context) error { return errors.New("down") }
			return g
		}
		svc := newTestService(t, testConfig(), map[string]*mock.MockGenerator{"vllm": down(), "ollama": down()})

		report := svc.Health(context.Background(), time.Second)
		assert.Equal(t, HealthUnhealthy, report.Status)
	})

	t.Run("degraded when the embedding service is down", func(t *testing.T) {
		provider := mock.NewMockProvider()
		provider.(*mock.MockProvider).PingFunc = func(ctx context.Context) error {
			return errors.New("embedding model not loaded")
		}
		svc, err := New(context.Background(), testConfig(),
			WithAIProvider(provider),
			WithGeneratorFactory(mockFactory(map[string]*mock.MockGenerator{})))
		require.NoError(t, err)
		t.Cleanup(func() { svc.Close() })

		report := svc.Health(context.Background(), time.Second)
		assert.Equal(t, HealthDegraded, report.Status)
		assert.Equal(t, HealthUnhealthy, report.Components["embedding_service"].Status)
		assert.Equal(t, "embedding model not loaded", report.Components["embedding_service"].Error)
	})

	t.Run("unhealthy when storage is closed", func(t *testing.T) {
		svc := newTestService(t, testConfig(), nil)
		require.NoError(t, svc.Stores().Backend.Close())

		report := svc.Health(context.Background(), time.Second)
		assert.Equal(t, HealthUnhealthy, report.Status)
		assert.NotEmpty(t, report.Components["graph_store"].Error)
	})
}

func TestService_Close(t *testing.T) {
	provider := mock.NewMockProvider()
	svc, err := New(context.Background(), testConfig(),
		WithAIProvider(provider),
		WithGeneratorFactory(mockFactory(map[string]*mock.MockGenerator{})))
	require.NoError(t, err)
	assert.NoError(t, svc.Close())
	assert.True(t, provider.(*mock.MockProvider).Closed(), "provider released")
	assert.True(t, svc.Stores().Backend.IsClosed(), "storage released")
}
