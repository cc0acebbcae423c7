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

package generation

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/poiesic/sibyl/ai"
	"github.com/poiesic/sibyl/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LLMGenerator adapts a langchaingo model to ai.Generator.
type LLMGenerator struct {
	model   llms.Model
	options []llms.CallOption
	ping    func(ctx context.Context) error
}

var (
	_ ai.Generator     = (*LLMGenerator)(nil)
	_ ai.HealthChecker = (*LLMGenerator)(nil)
)

// NewLLMGenerator is the Factory for production providers. It picks the
// langchaingo client matching the provider's backend.
func NewLLMGenerator(ctx context.Context, p Provider, s Settings) (ai.Generator, error) {
	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	var (
		model llms.Model
		ping  func(ctx context.Context) error
		err   error
	)
	switch b := p.Backend.(type) {
	case OpenAIBackend:
		base := withDefault(b.BaseURL, defaultOpenAIURL)
		model, err = openai.New(
			openai.WithToken(b.APIKey),
			openai.WithModel(b.Model),
			openai.WithBaseURL(base),
			openai.WithHTTPClient(client),
		)
	case VLLMBackend:
		key := withDefault(b.APIKey, "none")
		model, err = openai.New(
			openai.WithToken(key),
			openai.WithModel(b.Model),
			openai.WithBaseURL(b.BaseURL),
			openai.WithHTTPClient(client),
		)
	case OllamaBackend:
		base := withDefault(b.BaseURL, defaultOllamaURL)
		model, err = ollama.New(
			ollama.WithModel(b.Model),
			ollama.WithServerURL(base),
			ollama.WithHTTPClient(client),
		)
	case GeminiBackend:
		model, err = googleai.New(ctx,
			googleai.WithAPIKey(b.APIKey),
			googleai.WithDefaultModel(b.Model),
		)
		// A key is all that can be checked without spending quota
		ping = func(ctx context.Context) error { return ctx.Err() }
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, p.Backend)
	}
	if err != nil {
		return nil, err
	}
	if ping == nil {
		ping = func(ctx context.Context) error {
			_, err := ListModels(ctx, client, p.Backend)
			return err
		}
	}

	return NewLLMGeneratorFromModel(model, s, ping), nil
}

// NewLLMGeneratorFromModel wraps an existing langchaingo model. ping may be nil.
func NewLLMGeneratorFromModel(model llms.Model, s Settings, ping func(ctx context.Context) error) *LLMGenerator {
	opts := []llms.CallOption{llms.WithTemperature(s.Temperature)}
	if s.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(s.MaxTokens))
	}
	return &LLMGenerator{
		model:   model,
		options: opts,
		ping:    ping,
	}
}

// Generate sends the conversation to the model and returns the first choice.
func (g *LLMGenerator) Generate(ctx context.Context, messages []core.Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(messageType(m.Role), m.Text))
	}

	response, err := g.model.GenerateContent(ctx, content, g.options...)
	if err != nil {
		return "", err
	}
	if response == nil || len(response.Choices) == 0 {
		return "", ErrInvalidResponse
	}
	text := strings.TrimSpace(response.Choices[0].Content)
	if text == "" {
		return "", ErrInvalidResponse
	}
	return text, nil
}

// Ping reports whether the backend is reachable.
func (g *LLMGenerator) Ping(ctx context.Context) error {
	if g.ping == nil {
		return nil
	}
	return g.ping(ctx)
}

func messageType(role core.Role) llms.ChatMessageType {
	switch role {
	case core.RoleSystem:
		return llms.ChatMessageTypeSystem
	case core.RoleAssistant:
		return llms.ChatMessageTypeAI
	}
	return llms.ChatMessageTypeHuman
}

func withDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
