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

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/generation"
)

const (
	DefaultBudget        = 60 * time.Second
	DefaultPromptSources = 3
	DefaultContentLimit  = 2000
)

// Retriever produces the knowledge context for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, maxResults int) (*core.KnowledgeContext, error)
}

// Generator runs the generation fallback chain. Snapshot pins the provider
// configuration for one request and reports a *generation.ConfigurationError
// when nothing can answer.
type Generator interface {
	Snapshot() (*generation.Snapshot, error)
	GenerateWith(ctx context.Context, snap *generation.Snapshot, messages []core.Message) (*generation.Result, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithBudget sets the deadline shared by retrieval and every generation attempt.
func WithBudget(budget time.Duration) Option {
	return func(o *Orchestrator) error {
		if budget <= 0 {
			return fmt.Errorf("budget must be positive, got %v", budget)
		}
		o.budget = budget
		return nil
	}
}

// WithPromptSources sets how many of the best evidence entries are rendered
// into the prompt.
func WithPromptSources(n int) Option {
	return func(o *Orchestrator) error {
		if n < 1 || n > MaxSources {
			return fmt.Errorf("prompt sources must be between 1 and %d, got %d", MaxSources, n)
		}
		o.promptSources = n
		return nil
	}
}

// WithContentLimit caps the characters of each returned source's content.
func WithContentLimit(n int) Option {
	return func(o *Orchestrator) error {
		o.contentLimit = n
		return nil
	}
}

// WithSystemPrompt replaces the default system instruction.
func WithSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) error {
		o.systemPrompt = prompt
		return nil
	}
}

// WithConversations sets the conversation store.
func WithConversations(store *ConversationStore) Option {
	return func(o *Orchestrator) error {
		if store != nil {
			o.conversations = store
		}
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// Orchestrator answers chat requests.
type Orchestrator struct {
	retriever     Retriever
	generator     Generator
	conversations *ConversationStore
	budget        time.Duration
	promptSources int
	contentLimit  int
	systemPrompt  string
	logger        *slog.Logger
	now           func() time.Time
}

// NewOrchestrator creates a chat orchestrator.
func NewOrchestrator(retriever Retriever, generator Generator, opts ...Option) (*Orchestrator, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	o := &Orchestrator{
		retriever:     retriever,
		generator:     generator,
		budget:        DefaultBudget,
		promptSources: DefaultPromptSources,
		contentLimit:  DefaultContentLimit,
		systemPrompt:  DefaultSystemPrompt,
		logger:        slog.Default().With("component", "chat"),
		now:           time.Now,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.conversations == nil {
		o.conversations = NewConversationStore(DefaultConversationTTL, DefaultMaxMessages, 0)
	}
	return o, nil
}

// Conversations returns the conversation store.
func (o *Orchestrator) Conversations() *ConversationStore {
	return o.conversations
}

// Chat answers one request.
//
// A request that no provider could answer fails with
// *generation.ConfigurationError before anything is retrieved. Retrieval
// failures degrade to an answer without knowledge. Generation failures are
// returned as *generation.ServiceUnavailableError; in that case the
// conversation is left unchanged.
func (o *Orchestrator) Chat(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	snap, err := o.generator.Snapshot()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.budget)
	defer cancel()

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	logger := o.logger.With("conversation_id", conversationID)

	kc, err := o.retriever.Retrieve(ctx, req.Message, req.MaxSources)
	if errors.Is(err, core.ErrValidation) {
		return nil, err
	}
	if err != nil {
		logger.Warn("retrieval failed, answering without knowledge", "err", err)
		kc = &core.KnowledgeContext{Evidence: []core.Evidence{}, GraphFailed: true, VectorFailed: true}
	}

	entries := kc.Evidence[:min(o.promptSources, len(kc.Evidence))]
	now := o.now()
	history := o.conversations.History(conversationID)
	messages := buildMessages(o.systemPrompt, req.Context, entries, history, req.Message, now)

	result, err := o.generator.GenerateWith(ctx, snap, messages)
	if err != nil {
		logger.Error("generation failed", "err", err)
		return nil, err
	}

	o.conversations.Append(conversationID,
		core.Message{Role: core.RoleUser, Text: req.Message, Timestamp: now},
		core.Message{Role: core.RoleAssistant, Text: result.Text, Timestamp: o.now()},
	)

	resp := &Response{
		Response:       result.Text,
		Confidence:     Confidence(result.Tier, kc.MeanRelevance()),
		Sources:        sources(result.Text, kc.Evidence, len(entries), req.MaxSources, o.contentLimit),
		ModelUsed:      result.Model,
		Provider:       result.Provider,
		ProcessingTime: time.Since(start).Seconds(),
		ConversationID: conversationID,
		GraphFailed:    kc.GraphFailed,
		VectorFailed:   kc.VectorFailed,
	}
	logger.Info("chat answered",
		"provider", result.Provider,
		"tier", result.Tier,
		"evidence", len(kc.Evidence),
		"sources", len(resp.Sources),
		"confidence", resp.Confidence,
		"elapsed", time.Since(start))
	return resp, nil
}
