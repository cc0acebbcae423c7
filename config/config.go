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

// Package config loads the application configuration from a YAML file, a .env
// file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/sibyl/ai"
	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/generation"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// StorageConfig locates the BadgerDB directory.
type StorageConfig struct {
	DataDir  string `yaml:"data_dir"`
	InMemory bool   `yaml:"in_memory"`
}

// AIConfig configures the embedding and extraction services used by ingestion
// and vector retrieval.
type AIConfig struct {
	EmbeddingHost  string  `yaml:"embedding_host"`
	EmbeddingModel string  `yaml:"embedding_model"`
	ExtractorHost  string  `yaml:"extractor_host"`
	ExtractorModel string  `yaml:"extractor_model"`
	APIKey         string  `yaml:"api_key,omitempty"`
	MinConfidence  float64 `yaml:"min_confidence"`
}

// GenerationConfig holds parameters shared by every generation provider.
type GenerationConfig struct {
	CallTimeout time.Duration `yaml:"call_timeout"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
}

// RetrievalConfig tunes the retrieval coordinator and its sources.
// HopDecay is nil when the key is absent; an explicit 0 disables expansion.
type RetrievalConfig struct {
	GraphTimeout        time.Duration `yaml:"graph_timeout"`
	VectorTimeout       time.Duration `yaml:"vector_timeout"`
	MaxResults          int           `yaml:"max_results"`
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	MinGraphRelevance   float64       `yaml:"min_graph_relevance"`
	HopDecay            *float64      `yaml:"hop_decay"`
	CacheTTL            time.Duration `yaml:"cache_ttl"`
	CacheSize           int           `yaml:"cache_size"`
	PoolSize            int           `yaml:"pool_size"`
}

// ChatConfig tunes the chat orchestrator and the conversation store.
type ChatConfig struct {
	Budget           time.Duration `yaml:"budget"`
	MaxTurns         int           `yaml:"max_turns"`
	MaxHistoryTokens int           `yaml:"max_history_tokens"`
	ConversationTTL  time.Duration `yaml:"conversation_ttl"`
	PromptSources    int           `yaml:"prompt_sources"`
	SystemPrompt     string        `yaml:"system_prompt,omitempty"`
}

// IngestionConfig tunes the ingestion pipeline.
type IngestionConfig struct {
	PoolSize          int           `yaml:"pool_size"`
	MaxFiles          int           `yaml:"max_files"`
	MaxFileSize       int64         `yaml:"max_file_size"`
	AllowedExtensions []string      `yaml:"allowed_extensions,omitempty"`
	EmbedBatchSize    int           `yaml:"embed_batch_size"`
	EmbedRetries      int           `yaml:"embed_retries"`
	BatchRetention    time.Duration `yaml:"batch_retention"`
}

// LogConfig configures the default logger and the optional rotating file sink.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Config is the root application configuration.
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Storage    StorageConfig     `yaml:"storage"`
	AI         AIConfig          `yaml:"ai"`
	Providers  []generation.Spec `yaml:"providers"`
	Generation GenerationConfig  `yaml:"generation"`
	Retrieval  RetrievalConfig   `yaml:"retrieval"`
	Chat       ChatConfig        `yaml:"chat"`
	Ingestion  IngestionConfig   `yaml:"ingestion"`
	Log        LogConfig         `yaml:"log"`
}

// Load reads the configuration at path. A missing file yields defaults. A .env
// file in the working directory, when present, is loaded into the environment
// first, and environment variables override file values.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

// Default returns the default configuration without consulting the environment.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Save writes cfg to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func applyDefaults(cfg *Config) {
	s := &cfg.Server
	s.Addr = withDefault(s.Addr, ":8080")
	s.ReadTimeout = durationDefault(s.ReadTimeout, 30*time.Second)
	s.WriteTimeout = durationDefault(s.WriteTimeout, 120*time.Second)
	s.IdleTimeout = durationDefault(s.IdleTimeout, 120*time.Second)

	if !cfg.Storage.InMemory {
		cfg.Storage.DataDir = withDefault(cfg.Storage.DataDir, "./data")
	}

	// Both services default to one local Ollama.
	a := &cfg.AI
	a.EmbeddingHost = withDefault(a.EmbeddingHost, "http://localhost:11434/v1")
	a.EmbeddingModel = withDefault(a.EmbeddingModel, "nomic-embed-text")
	a.ExtractorHost = withDefault(a.ExtractorHost, a.EmbeddingHost)
	a.ExtractorModel = withDefault(a.ExtractorModel, "qwen2.5:3b")
	if a.MinConfidence == 0 {
		a.MinConfidence = 0.5
	}

	settings := generation.DefaultSettings()
	g := &cfg.Generation
	g.CallTimeout = durationDefault(g.CallTimeout, 30*time.Second)
	if g.Temperature == 0 {
		g.Temperature = settings.Temperature
	}
	if g.MaxTokens == 0 {
		g.MaxTokens = settings.MaxTokens
	}

	r := &cfg.Retrieval
	r.GraphTimeout = durationDefault(r.GraphTimeout, 5*time.Second)
	r.VectorTimeout = durationDefault(r.VectorTimeout, 10*time.Second)
	r.MaxResults = intDefault(r.MaxResults, 20)
	if r.SimilarityThreshold == 0 {
		r.SimilarityThreshold = 0.7
	}
	if r.MinGraphRelevance == 0 {
		r.MinGraphRelevance = 0.1
	}
	if r.HopDecay == nil {
		decay := 0.5
		r.HopDecay = &decay
	}
	r.CacheTTL = durationDefault(r.CacheTTL, 300*time.Second)
	r.CacheSize = intDefault(r.CacheSize, 1000)
	r.PoolSize = intDefault(r.PoolSize, 64)

	c := &cfg.Chat
	c.Budget = durationDefault(c.Budget, 60*time.Second)
	c.MaxTurns = intDefault(c.MaxTurns, 10)
	c.MaxHistoryTokens = intDefault(c.MaxHistoryTokens, 2000)
	c.ConversationTTL = durationDefault(c.ConversationTTL, time.Hour)
	c.PromptSources = intDefault(c.PromptSources, 3)

	in := &cfg.Ingestion
	in.PoolSize = intDefault(in.PoolSize, 4)
	in.MaxFiles = intDefault(in.MaxFiles, 50)
	if in.MaxFileSize == 0 {
		in.MaxFileSize = 50 << 20
	}
	in.EmbedBatchSize = intDefault(in.EmbedBatchSize, 32)
	in.EmbedRetries = intDefault(in.EmbedRetries, 3)
	in.BatchRetention = durationDefault(in.BatchRetention, 24*time.Hour)

	l := &cfg.Log
	l.Level = withDefault(l.Level, "info")
	l.Format = withDefault(l.Format, "text")
	l.MaxSizeMB = intDefault(l.MaxSizeMB, 100)
	l.MaxBackups = intDefault(l.MaxBackups, 3)
	l.MaxAgeDays = intDefault(l.MaxAgeDays, 28)

	if len(cfg.Providers) == 0 {
		cfg.Providers = defaultProviders()
	}
}

// defaultProviders is the local-first fallback chain: a vLLM server, then Ollama.
func defaultProviders() []generation.Spec {
	return []generation.Spec{
		{Name: "vllm", Kind: string(generation.KindVLLM), Priority: 1, Enabled: true,
			BaseURL: "http://localhost:8000/v1", Model: "meta-llama/Llama-3.1-8B-Instruct"},
		{Name: "ollama", Kind: string(generation.KindOllama), Priority: 2, Enabled: true,
			BaseURL: "http://localhost:11434", Model: "llama3.1:8b"},
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.Storage.DataDir, "SIBYL_DATA_DIR")
	setString(&cfg.Server.Addr, "SIBYL_HTTP_ADDR")
	setString(&cfg.Log.Level, "SIBYL_LOG_LEVEL")
	setString(&cfg.AI.EmbeddingHost, "SIBYL_EMBEDDING_HOST")
	setString(&cfg.AI.EmbeddingModel, "SIBYL_EMBEDDING_MODEL")
	setString(&cfg.AI.ExtractorHost, "SIBYL_EXTRACTOR_HOST")
	setString(&cfg.AI.ExtractorModel, "SIBYL_EXTRACTOR_MODEL")
	setString(&cfg.AI.APIKey, "SIBYL_AI_API_KEY")

	keys := map[generation.Kind]string{
		generation.KindOpenAI: os.Getenv("OPENAI_API_KEY"),
		generation.KindGemini: os.Getenv("GEMINI_API_KEY"),
	}
	hasGemini := false
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		kind, err := generation.ParseKind(p.Kind)
		if err != nil {
			continue
		}
		if kind == generation.KindGemini {
			hasGemini = true
		}
		if p.APIKey == "" && keys[kind] != "" {
			p.APIKey = keys[kind]
		}
	}

	// A Gemini key with no Gemini provider adds it at the end of the chain.
	if key := keys[generation.KindGemini]; key != "" && !hasGemini {
		last := 0
		for _, p := range cfg.Providers {
			last = max(last, p.Priority)
		}
		cfg.Providers = append(cfg.Providers, generation.Spec{
			Name: "gemini", Kind: string(generation.KindGemini), Priority: last + 1,
			Enabled: true, APIKey: key, Model: "gemini-1.5-flash",
		})
	}
}

// Validate reports every invalid field. The returned error matches
// core.ErrValidation.
func (c *Config) Validate() error {
	var errs []error
	add := func(field, reason string) {
		errs = append(errs, core.NewValidationError(field, reason))
	}

	if c.Server.Addr == "" {
		add("server.addr", "must not be empty")
	}
	if !c.Storage.InMemory && c.Storage.DataDir == "" {
		add("storage.data_dir", "required unless storage.in_memory is set")
	}
	if c.AI.MinConfidence < 0 || c.AI.MinConfidence > 1 {
		add("ai.min_confidence", "must be between 0 and 1")
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		add("generation.temperature", "must be between 0 and 2")
	}
	if c.Generation.MaxTokens <= 0 {
		add("generation.max_tokens", "must be positive")
	}
	if t := c.Retrieval.SimilarityThreshold; t < 0 || t > 1 {
		add("retrieval.similarity_threshold", "must be between 0 and 1")
	}
	if r := c.Retrieval.MinGraphRelevance; r < 0 || r >= 1 {
		add("retrieval.min_graph_relevance", "must be in [0, 1)")
	}
	if d := c.Retrieval.HopDecay; d != nil && (*d < 0 || *d > 1) {
		add("retrieval.hop_decay", "must be between 0 and 1")
	}
	if c.Retrieval.GraphTimeout < 0 || c.Retrieval.VectorTimeout < 0 {
		add("retrieval", "timeouts must not be negative")
	}
	if n := c.Chat.PromptSources; n < 1 || n > 20 {
		add("chat.prompt_sources", "must be between 1 and 20")
	}
	if c.Chat.MaxTurns < 1 {
		add("chat.max_turns", "must be positive")
	}
	if c.Ingestion.MaxFiles < 1 {
		add("ingestion.max_files", "must be positive")
	}
	if c.Ingestion.MaxFileSize < 1 {
		add("ingestion.max_file_size", "must be positive")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		add("log.format", "must be text or json")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		add("log.level", err.Error())
	}
	if _, err := c.GenerationProviders(); err != nil {
		add("providers", err.Error())
	}

	return errors.Join(errs...)
}

// GenerationProviders converts the provider entries to validated providers.
// Entries without a timeout use generation.call_timeout.
func (c *Config) GenerationProviders() ([]generation.Provider, error) {
	providers := make([]generation.Provider, 0, len(c.Providers))
	for i, s := range c.Providers {
		p, err := s.Provider()
		if err != nil {
			return nil, fmt.Errorf("providers[%d]: %w", i, err)
		}
		if p.Timeout == 0 {
			p.Timeout = c.Generation.CallTimeout
		}
		providers = append(providers, p)
	}
	return providers, nil
}

// Settings returns the generation settings.
func (c *Config) Settings() generation.Settings {
	s := generation.DefaultSettings()
	s.Temperature = c.Generation.Temperature
	s.MaxTokens = c.Generation.MaxTokens
	return s
}

// AIServiceConfig returns the embedding and extraction service configuration.
func (c *Config) AIServiceConfig() *ai.Config {
	return &ai.Config{
		Embedding:     ai.Endpoint{Host: c.AI.EmbeddingHost, Model: c.AI.EmbeddingModel},
		Extraction:    ai.Endpoint{Host: c.AI.ExtractorHost, Model: c.AI.ExtractorModel},
		APIKey:        c.AI.APIKey,
		MinConfidence: c.AI.MinConfidence,
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func withDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func intDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func durationDefault(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}
