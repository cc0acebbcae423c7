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

package mock

import (
	"context"
	"sync/atomic"

	"github.com/poiesic/sibyl/ai"
)

// MockProvider is a test double for ai.AIProvider bundling a MockEmbedder and
// a MockEntityExtractor. It records whether it was closed so tests can check
// that owners release it.
type MockProvider struct {
	// PingFunc is called by Ping if set.
	PingFunc func(ctx context.Context) error

	embedder  *MockEmbedder
	extractor *MockEntityExtractor
	closed    atomic.Bool
}

var _ ai.HealthChecker = (*MockProvider)(nil)

// ProviderOption replaces one of the services of a MockProvider.
type ProviderOption func(*MockProvider)

// WithEmbedder makes the provider serve e.
func WithEmbedder(e *MockEmbedder) ProviderOption {
	return func(p *MockProvider) {
		p.embedder = e
	}
}

// WithExtractor makes the provider serve e.
func WithExtractor(e *MockEntityExtractor) ProviderOption {
	return func(p *MockProvider) {
		p.extractor = e
	}
}

// NewMockProvider creates a mock provider with default mock services.
//
// It returns ai.AIProvider like the production constructor; assert to
// *MockProvider to reach the concrete services.
func NewMockProvider(opts ...ProviderOption) ai.AIProvider {
	p := &MockProvider{
		embedder:  NewMockEmbedder(),
		extractor: NewMockEntityExtractor(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *MockProvider) EntityExtractor() ai.EntityExtractor {
	return p.extractor
}

// Ping succeeds unless PingFunc says otherwise or the context is done.
func (p *MockProvider) Ping(ctx context.Context) error {
	if p.PingFunc != nil {
		return p.PingFunc(ctx)
	}
	return ctx.Err()
}

// Close marks the provider closed. Services keep working afterwards.
func (p *MockProvider) Close() error {
	p.closed.Store(true)
	return nil
}

// Closed reports whether Close was called.
func (p *MockProvider) Closed() bool {
	return p.closed.Load()
}

// GetMockEmbedder returns the concrete embedder for call counts and stubbing.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockExtractor returns the concrete extractor for call counts and stubbing.
func (p *MockProvider) GetMockExtractor() *MockEntityExtractor {
	return p.extractor
}
