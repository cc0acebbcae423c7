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
	"fmt"
	"strings"
	"time"
)

// Kind names a backend vendor.
type Kind string

const (
	KindOpenAI Kind = "openai"
	KindVLLM   Kind = "vllm"
	KindOllama Kind = "ollama"
	KindGemini Kind = "gemini"
)

const (
	defaultOpenAIURL = "https://api.openai.com/v1"
	defaultOllamaURL = "http://localhost:11434"
	defaultTimeout   = 30 * time.Second
)

// ParseKind converts a configuration string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindOpenAI, KindVLLM, KindOllama, KindGemini:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Backend is the vendor specific part of a Provider. The set of
// implementations is closed.
type Backend interface {
	Kind() Kind
	validate() error
}

// OpenAIBackend targets the hosted OpenAI API.
type OpenAIBackend struct {
	BaseURL string
	APIKey  string
	Model   string
}

func (OpenAIBackend) Kind() Kind { return KindOpenAI }

func (b OpenAIBackend) validate() error {
	if b.APIKey == "" {
		return fmt.Errorf("%w: openai api_key", ErrMissingField)
	}
	if b.Model == "" {
		return fmt.Errorf("%w: openai model", ErrMissingField)
	}
	return nil
}

// VLLMBackend targets any OpenAI-compatible server such as vLLM or LocalAI.
// The API key is optional.
type VLLMBackend struct {
	BaseURL string
	APIKey  string
	Model   string
}

func (VLLMBackend) Kind() Kind { return KindVLLM }

func (b VLLMBackend) validate() error {
	if b.BaseURL == "" {
		return fmt.Errorf("%w: vllm base_url", ErrMissingField)
	}
	if b.Model == "" {
		return fmt.Errorf("%w: vllm model", ErrMissingField)
	}
	return nil
}

// OllamaBackend targets an Ollama server.
type OllamaBackend struct {
	BaseURL string
	Model   string
}

func (OllamaBackend) Kind() Kind { return KindOllama }

func (b OllamaBackend) validate() error {
	if b.Model == "" {
		return fmt.Errorf("%w: ollama model", ErrMissingField)
	}
	return nil
}

// GeminiBackend targets the Google Gemini API.
type GeminiBackend struct {
	APIKey string
	Model  string
}

func (GeminiBackend) Kind() Kind { return KindGemini }

func (b GeminiBackend) validate() error {
	if b.APIKey == "" {
		return fmt.Errorf("%w: gemini api_key", ErrMissingField)
	}
	if b.Model == "" {
		return fmt.Errorf("%w: gemini model", ErrMissingField)
	}
	return nil
}

// Provider is one generation backend in the fallback chain. Lower Priority
// values are tried first.
type Provider struct {
	Name     string
	Priority int
	Enabled  bool
	Backend  Backend
	// Timeout bounds a single call. Zero means 30 seconds.
	Timeout time.Duration
}

// Validate checks the provider and its backend.
func (p Provider) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name", ErrMissingField)
	}
	if p.Backend == nil {
		return fmt.Errorf("%w: provider %s has no backend", ErrMissingField, p.Name)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("provider %s: negative timeout", p.Name)
	}
	if err := p.Backend.validate(); err != nil {
		return fmt.Errorf("provider %s: %w", p.Name, err)
	}
	return nil
}

// Model returns the model identifier of the provider's backend.
func (p Provider) Model() string {
	switch b := p.Backend.(type) {
	case OpenAIBackend:
		return b.Model
	case VLLMBackend:
		return b.Model
	case OllamaBackend:
		return b.Model
	case GeminiBackend:
		return b.Model
	}
	return ""
}

func (p Provider) callTimeout() time.Duration {
	if p.Timeout <= 0 {
		return defaultTimeout
	}
	return p.Timeout
}

// Spec is the flat, serializable form of a Provider used by configuration
// files and the HTTP API.
type Spec struct {
	Name           string `json:"name" yaml:"name"`
	Kind           string `json:"kind" yaml:"kind"`
	Priority       int    `json:"priority" yaml:"priority"`
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	BaseURL        string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKey         string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Model          string `json:"model" yaml:"model"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

// Provider converts the spec to a validated Provider.
func (s Spec) Provider() (Provider, error) {
	kind, err := ParseKind(s.Kind)
	if err != nil {
		return Provider{}, fmt.Errorf("provider %s: %w", s.Name, err)
	}

	var backend Backend
	switch kind {
	case KindOpenAI:
		backend = OpenAIBackend{BaseURL: s.BaseURL, APIKey: s.APIKey, Model: s.Model}
	case KindVLLM:
		backend = VLLMBackend{BaseURL: s.BaseURL, APIKey: s.APIKey, Model: s.Model}
	case KindOllama:
		backend = OllamaBackend{BaseURL: s.BaseURL, Model: s.Model}
	case KindGemini:
		backend = GeminiBackend{APIKey: s.APIKey, Model: s.Model}
	}

	p := Provider{
		Name:     s.Name,
		Priority: s.Priority,
		Enabled:  s.Enabled,
		Backend:  backend,
		Timeout:  time.Duration(s.TimeoutSeconds) * time.Second,
	}
	if err := p.Validate(); err != nil {
		return Provider{}, err
	}
	return p, nil
}

// SpecOf returns the flat form of p. API keys are masked.
func SpecOf(p Provider) Spec {
	s := Spec{
		Name:           p.Name,
		Priority:       p.Priority,
		Enabled:        p.Enabled,
		Model:          p.Model(),
		TimeoutSeconds: int(p.Timeout / time.Second),
	}
	switch b := p.Backend.(type) {
	case OpenAIBackend:
		s.Kind, s.BaseURL, s.APIKey = string(KindOpenAI), b.BaseURL, mask(b.APIKey)
	case VLLMBackend:
		s.Kind, s.BaseURL, s.APIKey = string(KindVLLM), b.BaseURL, mask(b.APIKey)
	case OllamaBackend:
		s.Kind, s.BaseURL = string(KindOllama), b.BaseURL
	case GeminiBackend:
		s.Kind, s.APIKey = string(KindGemini), mask(b.APIKey)
	}
	return s
}

func mask(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
