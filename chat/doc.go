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

// Package chat answers user questions with retrieved knowledge.
//
// An Orchestrator retrieves a KnowledgeContext for the question, renders the
// best entries into a numbered prompt together with the conversation history,
// and asks the generation fallback chain for a reply. The reply is returned
// with a confidence score and the entries it cites.
//
// Conversations are held in memory by a ConversationStore and expire after a
// period of inactivity.
package chat
