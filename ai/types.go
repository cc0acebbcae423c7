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

package ai

import "strings"

// EntityTypes defines the valid categories for extracted entities.
var EntityTypes = []string{
	"PRODUCT",
	"ERROR",
	"COMPONENT",
	"PROCESS",
	"TECHNOLOGY",
	"FILE",
	"LOCATION",
	"PERSON",
	"ORGANIZATION",
	"CONCEPT",
}

// RelationshipTypes maps each relationship type to the confidence assigned when
// an extractor does not supply one.
var RelationshipTypes = map[string]float64{
	"CAUSES":      0.8,
	"REQUIRES":    0.7,
	"PART_OF":     0.7,
	"CONNECTS_TO": 0.6,
	"CONTAINS":    0.6,
	"SIMILAR_TO":  0.5,
	"RELATED_TO":  0.4,
}

// NormalizeEntityType maps free-form type labels onto EntityTypes, falling back
// to CONCEPT.
func NormalizeEntityType(t string) string {
	t = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(t), " ", "_"))
	for _, known := range EntityTypes {
		if t == known {
			return t
		}
	}
	return "CONCEPT"
}

// NormalizeRelationshipType maps free-form relationship labels onto
// RelationshipTypes, falling back to RELATED_TO.
func NormalizeRelationshipType(t string) string {
	t = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(t), " ", "_"))
	if _, ok := RelationshipTypes[t]; ok {
		return t
	}
	return "RELATED_TO"
}
