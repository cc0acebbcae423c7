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

// Package generation drives text generation across several backends with
// strict priority ordered fallback.
//
// A Provider describes one backend: its name, its priority rank and a Backend
// value whose concrete type selects the vendor (OpenAIBackend, VLLMBackend,
// OllamaBackend, GeminiBackend). Required fields are checked when the provider
// is built, not when it is called.
//
// Providers live in a Registry. Every Update validates the full list, builds a
// generator for each enabled provider and publishes a new immutable Snapshot.
// Requests read one snapshot and use it for their whole lifetime, so a
// configuration change never alters a fallback that is already running.
//
// The Orchestrator walks the enabled providers of a snapshot in priority order:
//
//	Idle -> Attempting(i) -> Success => Done
//	                      -> Fail    => Attempting(i+1) ... => AllFailed
//
// Attempts are sequential. Each one gets its own timeout and the caller's
// context bounds the whole walk; once that context is done no further attempt
// is started.
//
// # Usage
//
//	registry := generation.NewRegistry(generation.NewLLMGenerator)
//	_, err := registry.Update(ctx, []generation.Provider{
//	    {Name: "local", Priority: 1, Enabled: true, Backend: generation.OllamaBackend{BaseURL: "http://localhost:11434", Model: "llama3.2"}},
//	})
//	orch := generation.NewOrchestrator(registry)
//	result, err := orch.Generate(ctx, messages)
package generation
