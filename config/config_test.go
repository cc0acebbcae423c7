package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory with no provider keys set.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, key := range []string{
		"OPENAI_API_KEY", "GEMINI_API_KEY", "SIBYL_DATA_DIR", "SIBYL_HTTP_ADDR",
		"SIBYL_LOG_LEVEL", "SIBYL_EMBEDDING_HOST", "SIBYL_EMBEDDING_MODEL",
		"SIBYL_EXTRACTOR_HOST", "SIBYL_EXTRACTOR_MODEL", "SIBYL_AI_API_KEY",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "./data", cfg.Storage.DataDir)
	assert.Equal(t, 0.7, cfg.Retrieval.SimilarityThreshold)
	assert.Equal(t, 0.1, cfg.Retrieval.MinGraphRelevance)
	require.NotNil(t, cfg.Retrieval.HopDecay)
	assert.Equal(t, 0.5, *cfg.Retrieval.HopDecay)
	assert.Equal(t, 300*time.Second, cfg.Retrieval.CacheTTL)
	assert.Equal(t, 1000, cfg.Retrieval.CacheSize)
	assert.Equal(t, 60*time.Second, cfg.Chat.Budget)
	assert.Equal(t, 10, cfg.Chat.MaxTurns)
	assert.Equal(t, 3, cfg.Chat.PromptSources)
	assert.Equal(t, 50, cfg.Ingestion.MaxFiles)
	assert.Equal(t, int64(50<<20), cfg.Ingestion.MaxFileSize)
	assert.Equal(t, 0.7, cfg.Generation.Temperature)
	assert.Equal(t, 1000, cfg.Generation.MaxTokens)

	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "vllm", cfg.Providers[0].Name)
	assert.Equal(t, "ollama", cfg.Providers[1].Name)
}

func TestLoad_YAML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "sibyl.yaml")
	writeFile(t, path, `
server:
  addr: ":9090"
  read_timeout: 5s
storage:
  in_memory: true
retrieval:
  similarity_threshold: 0.8
  cache_ttl: 1m
chat:
  prompt_sources: 5
providers:
  - name: primary
    kind: openai
    priority: 1
    enabled: true
    model: gpt-4o-mini
  - name: local
    kind: ollama
    priority: 2
    enabled: true
    model: llama3.1:8b
    timeout_seconds: 45
`)
	t.Setenv("OPENAI_API_KEY", "sk-test-key")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 120*time.Second, cfg.Server.WriteTimeout, "unset fields take defaults")
	assert.True(t, cfg.Storage.InMemory)
	assert.Empty(t, cfg.Storage.DataDir)
	assert.Equal(t, 0.8, cfg.Retrieval.SimilarityThreshold)
	assert.Equal(t, time.Minute, cfg.Retrieval.CacheTTL)
	assert.Equal(t, 5, cfg.Chat.PromptSources)

	providers, err := cfg.GenerationProviders()
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, generation.OpenAIBackend{APIKey: "sk-test-key", Model: "gpt-4o-mini"}, providers[0].Backend,
		"empty openai key filled from the environment")
	assert.Equal(t, 30*time.Second, providers[0].Timeout, "call timeout applied")
	assert.Equal(t, 45*time.Second, providers[1].Timeout)
}

func TestLoad_ExplicitZeroHopDecay(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "sibyl.yaml")
	writeFile(t, path, "retrieval:\n  hop_decay: 0\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.NotNil(t, cfg.Retrieval.HopDecay)
	assert.Zero(t, *cfg.Retrieval.HopDecay, "an explicit zero disables expansion")

	writeFile(t, path, "retrieval:\n  similarity_threshold: 0.5\n")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, *cfg.Retrieval.HopDecay, "an absent key takes the default")
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.yaml")
	writeFile(t, path, "server: [not a map")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	dir := isolate(t)
	// godotenv never overrides a variable that is already set, even to "".
	os.Unsetenv("SIBYL_EMBEDDING_MODEL")
	writeFile(t, filepath.Join(dir, ".env"), "SIBYL_EMBEDDING_MODEL=from-dotenv\nSIBYL_LOG_LEVEL=warn\n")
	t.Setenv("SIBYL_DATA_DIR", "/var/lib/sibyl")
	t.Setenv("SIBYL_HTTP_ADDR", "127.0.0.1:7000")
	t.Setenv("SIBYL_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/sibyl", cfg.Storage.DataDir)
	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level, "process environment wins over .env")
	assert.Equal(t, "from-dotenv", cfg.AI.EmbeddingModel)
}

func TestLoad_GeminiKeyAddsProvider(t *testing.T) {
	isolate(t)
	t.Setenv("GEMINI_API_KEY", "gm-key-123456")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 3)

	gemini := cfg.Providers[2]
	assert.Equal(t, "gemini", gemini.Kind)
	assert.Equal(t, 3, gemini.Priority, "appended after the local providers")
	assert.Equal(t, "gm-key-123456", gemini.APIKey)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"similarity threshold", func(c *Config) { c.Retrieval.SimilarityThreshold = 1.5 }, "retrieval.similarity_threshold"},
		{"hop decay", func(c *Config) { d := -0.1; c.Retrieval.HopDecay = &d }, "retrieval.hop_decay"},
		{"prompt sources", func(c *Config) { c.Chat.PromptSources = 21 }, "chat.prompt_sources"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"temperature", func(c *Config) { c.Generation.Temperature = 3 }, "generation.temperature"},
		{"data dir", func(c *Config) { c.Storage.DataDir = "" }, "storage.data_dir"},
		{"provider", func(c *Config) {
			c.Providers = append(c.Providers, generation.Spec{Name: "x", Kind: "openai", Priority: 9, Model: "m"})
		}, "providers"},
		{"provider kind", func(c *Config) { c.Providers[0].Kind = "bard" }, "providers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrValidation)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidate_ReportsEveryField(t *testing.T) {
	cfg := Default()
	cfg.Chat.MaxTurns = 0
	cfg.Ingestion.MaxFiles = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat.max_turns")
	assert.Contains(t, err.Error(), "ingestion.max_files")
}

func TestSaveRoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "sibyl.yaml")

	cfg := Default()
	cfg.Chat.Budget = 45 * time.Second
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "budget: 45s")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSettingsAndAIConfig(t *testing.T) {
	cfg := Default()
	cfg.Generation.Temperature = 0.2
	cfg.AI.EmbeddingModel = "text-embedding-3-small"

	s := cfg.Settings()
	assert.Equal(t, 0.2, s.Temperature)
	assert.Equal(t, 1000, s.MaxTokens)

	a := cfg.AIServiceConfig()
	assert.Equal(t, "text-embedding-3-small", a.Embedding.Model)
	assert.Equal(t, cfg.AI.ExtractorHost, a.Extraction.Host)
	assert.Equal(t, 0.5, a.MinConfidence)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	logger, closer, err := NewLogger(LogConfig{
		Level:     "warn",
		Format:    "json",
		File:      filepath.Join(dir, "sibyl.log"),
		MaxSizeMB: 1,
	}, &console)
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept", "document_id", "abc")
	require.NoError(t, closer.Close())

	assert.NotContains(t, console.String(), "dropped")
	assert.Contains(t, console.String(), `"msg":"kept"`)

	data, err := os.ReadFile(filepath.Join(dir, "sibyl.log"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"document_id":"abc"`))

	_, _, err = NewLogger(LogConfig{Format: "xml"}, &console)
	assert.Error(t, err)
}
