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
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/sibyl/ai"
)

// Settings are generation parameters shared by every provider.
type Settings struct {
	Temperature float64
	MaxTokens   int
	HTTPClient  *http.Client
}

// DefaultSettings returns temperature 0.7 and at most 1000 tokens.
func DefaultSettings() Settings {
	return Settings{
		Temperature: 0.7,
		MaxTokens:   1000,
	}
}

// Factory builds the generator for one provider.
type Factory func(ctx context.Context, p Provider, s Settings) (ai.Generator, error)

type link struct {
	provider  Provider
	generator ai.Generator
}

// Snapshot is an immutable view of the provider configuration.
type Snapshot struct {
	Version   uint64
	UpdatedAt time.Time
	// Providers holds every configured provider in priority order,
	// including disabled ones.
	Providers []Provider
	chain     []link
}

// Chain returns the enabled providers in the order they are tried.
func (s *Snapshot) Chain() []Provider {
	out := make([]Provider, len(s.chain))
	for i, l := range s.chain {
		out[i] = l.provider
	}
	return out
}

// Generator returns the generator built for the named enabled provider.
func (s *Snapshot) Generator(name string) (ai.Generator, bool) {
	for _, l := range s.chain {
		if l.provider.Name == name {
			return l.generator, true
		}
	}
	return nil, false
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithSettings sets the generation parameters passed to the factory.
func WithSettings(s Settings) RegistryOption {
	return func(r *Registry) {
		r.settings = s
	}
}

// WithRegistryLogger sets the registry logger.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// Registry holds the current provider Snapshot. Reads are lock free; updates
// are serialized and replace the snapshot atomically.
type Registry struct {
	factory  Factory
	settings Settings
	logger   *slog.Logger

	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

// NewRegistry creates a registry holding an empty snapshot.
func NewRegistry(factory Factory, opts ...RegistryOption) *Registry {
	r := &Registry{
		factory:  factory,
		settings: DefaultSettings(),
		logger:   slog.Default().With("component", "provider-registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.current.Store(&Snapshot{})
	return r
}

// Current returns the active snapshot.
func (r *Registry) Current() *Snapshot {
	return r.current.Load()
}

// Settings returns the generation parameters in use.
func (r *Registry) Settings() Settings {
	return r.settings
}

// Update validates providers, builds their generators and publishes them as a
// new snapshot. On error the active snapshot is left untouched.
func (r *Registry) Update(ctx context.Context, providers []Provider) (*Snapshot, error) {
	sorted := slices.Clone(providers)
	names := make(map[string]bool, len(sorted))
	priorities := make(map[int]string, len(sorted))
	for _, p := range sorted {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		key := strings.ToLower(p.Name)
		if names[key] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, p.Name)
		}
		names[key] = true
		if other, ok := priorities[p.Priority]; ok {
			return nil, fmt.Errorf("%w: %d used by %s and %s", ErrDuplicatePriority, p.Priority, other, p.Name)
		}
		priorities[p.Priority] = p.Name
	}
	slices.SortFunc(sorted, func(a, b Provider) int {
		return a.Priority - b.Priority
	})

	var chain []link
	for _, p := range sorted {
		if !p.Enabled {
			continue
		}
		gen, err := r.factory(ctx, p, r.settings)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.Name, err)
		}
		chain = append(chain, link{provider: p, generator: gen})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	next := &Snapshot{
		Version:   r.current.Load().Version + 1,
		UpdatedAt: time.Now(),
		Providers: sorted,
		chain:     chain,
	}
	r.current.Store(next)
	r.logger.Info("provider configuration updated",
		"version", next.Version,
		"providers", len(sorted),
		"enabled", len(chain))
	return next, nil
}

// UpdateSpecs converts specs to providers and calls Update. A masked API key,
// as returned by SpecOf, keeps the key of the existing provider with the same name.
func (r *Registry) UpdateSpecs(ctx context.Context, specs []Spec) (*Snapshot, error) {
	existing := make(map[string]Spec)
	for _, p := range r.Current().Providers {
		existing[p.Name] = unmaskedSpec(p)
	}

	providers := make([]Provider, 0, len(specs))
	for _, s := range specs {
		if strings.Contains(s.APIKey, "****") {
			s.APIKey = existing[s.Name].APIKey
		}
		p, err := s.Provider()
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return r.Update(ctx, providers)
}

func unmaskedSpec(p Provider) Spec {
	s := SpecOf(p)
	switch b := p.Backend.(type) {
	case OpenAIBackend:
		s.APIKey = b.APIKey
	case VLLMBackend:
		s.APIKey = b.APIKey
	case GeminiBackend:
		s.APIKey = b.APIKey
	}
	return s
}
