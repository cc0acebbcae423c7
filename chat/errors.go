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

import "errors"

var (
	// ErrConversationNotFound is returned when a conversation id is unknown or expired.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrRetrieverRequired is returned when no retriever is configured.
	ErrRetrieverRequired = errors.New("retriever is required")

	// ErrGeneratorRequired is returned when no generator is configured.
	ErrGeneratorRequired = errors.New("generator is required")
)
