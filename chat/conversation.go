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
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/patrickmn/go-cache"
	"github.com/poiesic/sibyl/core"
)

const (
	DefaultMaxMessages     = 10
	DefaultConversationTTL = time.Hour
)

// ConversationStore keeps conversation histories in memory. A conversation
// expires when it has not been written for the store's TTL.
type ConversationStore struct {
	cache       *cache.Cache
	maxMessages int
	maxTokens   int
	// serializes read-modify-write of a history
	mu sync.Mutex
}

// NewConversationStore creates a store retaining at most maxMessages
// non-system messages per conversation. maxTokens additionally bounds the
// estimated size of a history; zero disables the bound.
func NewConversationStore(ttl time.Duration, maxMessages, maxTokens int) *ConversationStore {
	if ttl <= 0 {
		ttl = DefaultConversationTTL
	}
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &ConversationStore{
		cache:       cache.New(ttl, ttl/2),
		maxMessages: maxMessages,
		maxTokens:   maxTokens,
	}
}

// History returns a copy of the conversation's messages, oldest first.
// Unknown ids yield an empty history.
func (s *ConversationStore) History(id string) []core.Message {
	if v, ok := s.cache.Get(id); ok {
		return slices.Clone(v.([]core.Message))
	}
	return nil
}

// Get returns the conversation with the given id.
func (s *ConversationStore) Get(id string) (*core.Conversation, error) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, ErrConversationNotFound
	}
	return &core.Conversation{ID: id, Messages: slices.Clone(v.([]core.Message))}, nil
}

// Append adds messages to the conversation, creating it if needed, and
// truncates the result.
func (s *ConversationStore) Append(id string, messages ...core.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var history []core.Message
	if v, ok := s.cache.Get(id); ok {
		history = slices.Clone(v.([]core.Message))
	}
	history = append(history, messages...)
	s.cache.SetDefault(id, Truncate(history, s.maxMessages, s.maxTokens))
}

// Delete removes a conversation.
func (s *ConversationStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cache.Get(id); !ok {
		return ErrConversationNotFound
	}
	s.cache.Delete(id)
	return nil
}

// Count returns the number of live conversations.
func (s *ConversationStore) Count() int {
	return s.cache.ItemCount()
}

// Truncate drops the oldest non-system messages until at most maxMessages of
// them remain and, when maxTokens is positive, the estimated token count fits.
// System messages are never dropped, and neither is the newest message.
func Truncate(messages []core.Message, maxMessages, maxTokens int) []core.Message {
	var conversational, tokens int
	for _, m := range messages {
		if m.Role != core.RoleSystem {
			conversational++
		}
		tokens += EstimateTokens(m.Text)
	}

	out := make([]core.Message, 0, len(messages))
	for i, m := range messages {
		overCount := maxMessages > 0 && conversational > maxMessages
		overTokens := maxTokens > 0 && tokens > maxTokens
		if m.Role != core.RoleSystem && i < len(messages)-1 && (overCount || overTokens) {
			conversational--
			tokens -= EstimateTokens(m.Text)
			continue
		}
		out = append(out, m)
	}
	return out
}

// EstimateTokens approximates the token count of text at four characters per token.
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}
