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
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/sibyl/core"
)

// Result is a successful generation.
type Result struct {
	Text     string
	Provider string
	Model    string
	// Tier is the zero based position of Provider in the enabled chain.
	Tier    int
	Latency time.Duration
	// Failures lists the providers that failed before Provider answered.
	Failures []ProviderError
	// Version is the snapshot version the request ran against.
	Version uint64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// Orchestrator runs the priority ordered fallback over a Registry.
type Orchestrator struct {
	registry *Registry
	logger   *slog.Logger
}

// NewOrchestrator creates an orchestrator reading providers from registry.
func NewOrchestrator(registry *Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		logger:   slog.Default().With("component", "generation"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry returns the registry the orchestrator reads from.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Generate asks each enabled provider in priority order for a reply to
// messages and returns the first non-empty one.
//
// It returns *ConfigurationError when no provider is enabled and
// *ServiceUnavailableError when every provider failed or ctx ended first.
func (o *Orchestrator) Generate(ctx context.Context, messages []core.Message) (*Result, error) {
	return o.GenerateWith(ctx, o.registry.Current(), messages)
}

// Snapshot returns the current provider configuration. It fails with
// *ConfigurationError when no provider is enabled, without contacting any.
func (o *Orchestrator) Snapshot() (*Snapshot, error) {
	snap := o.registry.Current()
	if err := usable(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// GenerateWith is Generate against an explicit snapshot.
func (o *Orchestrator) GenerateWith(ctx context.Context, snap *Snapshot, messages []core.Message) (*Result, error) {
	if err := usable(snap); err != nil {
		return nil, err
	}

	var failures []ProviderError
	for tier, l := range snap.chain {
		if err := ctx.Err(); err != nil {
			o.logger.Warn("generation budget exhausted", "attempted", len(failures), "err", err)
			return nil, &ServiceUnavailableError{Failures: failures, Cause: err}
		}

		start := time.Now()
		text, err := o.attempt(ctx, l, messages)
		latency := time.Since(start)
		if err == nil {
			o.logger.Debug("generation succeeded",
				"provider", l.provider.Name,
				"tier", tier,
				"latency", latency)
			return &Result{
				Text:     text,
				Provider: l.provider.Name,
				Model:    l.provider.Model(),
				Tier:     tier,
				Latency:  latency,
				Failures: failures,
				Version:  snap.Version,
			}, nil
		}

		var perr *ProviderError
		if !errors.As(err, &perr) {
			perr = &ProviderError{Provider: l.provider.Name, Reason: ReasonBadStatus, Err: err}
		}
		failures = append(failures, *perr)
		o.logger.Warn("provider failed",
			"provider", l.provider.Name,
			"tier", tier,
			"reason", perr.Reason,
			"latency", latency,
			"err", perr.Err)

		if err := ctx.Err(); err != nil {
			return nil, &ServiceUnavailableError{Failures: failures, Cause: err}
		}
	}

	return nil, &ServiceUnavailableError{Failures: failures}
}

func usable(snap *Snapshot) error {
	if snap == nil || len(snap.chain) == 0 {
		return &ConfigurationError{Reason: "no enabled generation provider"}
	}
	return nil
}

func (o *Orchestrator) attempt(ctx context.Context, l link, messages []core.Message) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, l.provider.callTimeout())
	defer cancel()

	text, err := l.generator.Generate(callCtx, messages)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrInvalidResponse
	}
	if err == nil {
		return text, nil
	}

	reason := ReasonBadStatus
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		reason = ReasonCanceled
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		reason = ReasonTimeout
	case errors.Is(err, ErrInvalidResponse):
		reason = ReasonInvalidResponse
	}
	return "", &ProviderError{Provider: l.provider.Name, Reason: reason, Err: err}
}
