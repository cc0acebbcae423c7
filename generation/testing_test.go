package generation

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/sibyl/ai"
	"github.com/poiesic/sibyl/ai/mock"
	"github.com/poiesic/sibyl/core"
	"github.com/stretchr/testify/require"
)

// callLog records the order in which mock generators are invoked.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// mockFactory returns a Factory that serves generators from gens by provider
// name and logs every Generate call.
func mockFactory(log *callLog, gens map[string]*mock.MockGenerator) Factory {
	return func(ctx context.Context, p Provider, s Settings) (ai.Generator, error) {
		gen, ok := gens[p.Name]
		if !ok {
			return nil, fmt.Errorf("no mock for %s", p.Name)
		}
		return loggingGenerator{name: p.Name, log: log, gen: gen}, nil
	}
}

type loggingGenerator struct {
	name string
	log  *callLog
	gen  *mock.MockGenerator
}

func (g loggingGenerator) Generate(ctx context.Context, messages []core.Message) (string, error) {
	g.log.add(g.name)
	return g.gen.Generate(ctx, messages)
}

func (g loggingGenerator) Ping(ctx context.Context) error {
	return g.gen.Ping(ctx)
}

func ollamaProvider(name string, priority int) Provider {
	return Provider{
		Name:     name,
		Priority: priority,
		Enabled:  true,
		Backend:  OllamaBackend{Model: "llama3.2"},
	}
}

func failing(err error) *mock.MockGenerator {
	g := mock.NewMockGenerator()
	g.GenerateFunc = func(ctx context.Context, messages []core.Message) (string, error) {
		return "", err
	}
	return g
}

func replying(text string) *mock.MockGenerator {
	g := mock.NewMockGenerator()
	g.GenerateFunc = func(ctx context.Context, messages []core.Message) (string, error) {
		return text, nil
	}
	return g
}

func newTestOrchestrator(t *testing.T, gens map[string]*mock.MockGenerator, providers ...Provider) (*Orchestrator, *callLog) {
	t.Helper()
	log := &callLog{}
	registry := NewRegistry(mockFactory(log, gens))
	_, err := registry.Update(context.Background(), providers)
	require.NoError(t, err)
	return NewOrchestrator(registry), log
}

var userTurn = []core.Message{{Role: core.RoleUser, Text: "how do I reset the router?"}}
