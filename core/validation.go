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

package core

import (
	"fmt"
	"strings"
)

// ValidateEntity validates an Entity according to domain rules.
//
// Validation rules:
//   - DocumentID must not be empty
//   - Name and Type must not be empty
//   - Confidence must be within [0,1]
func ValidateEntity(entity *Entity) error {
	if entity == nil {
		return fmt.Errorf("%w: entity is nil", ErrInvalidEntity)
	}
	if entity.DocumentID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrMissingDocumentID)
	}
	if strings.TrimSpace(entity.Name) == "" || entity.Type == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrEmptyContent)
	}
	if entity.Confidence < 0 || entity.Confidence > 1 {
		return fmt.Errorf("%w: confidence %f out of range", ErrInvalidEntity, entity.Confidence)
	}
	return nil
}

// ValidateRelationship validates a Relationship according to domain rules.
func ValidateRelationship(rel *Relationship) error {
	if rel == nil {
		return fmt.Errorf("%w: relationship is nil", ErrInvalidRelationship)
	}
	if rel.DocumentID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRelationship, ErrMissingDocumentID)
	}
	if rel.Type == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRelationship, ErrEmptyContent)
	}
	if rel.SourceID == rel.TargetID {
		return fmt.Errorf("%w: self reference", ErrInvalidRelationship)
	}
	return nil
}

// ValidateEmbedding validates an Embedding according to domain rules.
func ValidateEmbedding(emb *Embedding) error {
	if emb == nil {
		return fmt.Errorf("%w: embedding is nil", ErrInvalidEmbedding)
	}
	if emb.DocumentID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEmbedding, ErrMissingDocumentID)
	}
	if len(emb.Vector) == 0 {
		return fmt.Errorf("%w: empty vector", ErrInvalidEmbedding)
	}
	return nil
}

// ValidateRole validates that a Role has a known value.
func ValidateRole(role Role) error {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidRole, role)
}
