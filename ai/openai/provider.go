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

package openai

import (
	"context"
	"log/slog"

	"github.com/poiesic/sibyl/ai"
)

// Provider serves embeddings and entity extraction from OpenAI-compatible
// endpoints. Embedding and extraction may live on different hosts.
type Provider struct {
	config    *ai.Config
	embedder  *Embedder
	extractor *EntityExtractor
	logger    *slog.Logger
}

var (
	_ ai.AIProvider    = (*Provider)(nil)
	_ ai.HealthChecker = (*Provider)(nil)
)

// NewProvider validates config and builds both services.
//
// Returns ai.AIProvider so callers do not couple to the concrete type.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}
	extractor, err := newEntityExtractor(config)
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "openai-provider")
	logger.Debug("AI provider configured",
		"embedding_host", config.Embedding.Host,
		"embedding_model", config.Embedding.Model,
		"extraction_host", config.Extraction.Host,
		"extraction_model", config.Extraction.Model)

	return &Provider{
		config:    config,
		embedder:  embedder,
		extractor: extractor,
		logger:    logger,
	}, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) EntityExtractor() ai.EntityExtractor {
	return p.extractor
}

// Ping reports whether the embedding endpoint answers. Extraction is only
// needed during ingestion and is not probed.
func (p *Provider) Ping(ctx context.Context) error {
	return p.embedder.Ping(ctx)
}

// Close is a no-op; the HTTP clients hold no resources that need releasing.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
