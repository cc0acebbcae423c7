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
	"encoding/hex"
	"strconv"

	"github.com/go-crypt/x/blake2b"
)

// SourceKind identifies which store produced a piece of evidence.
// The numeric order is the merge tie-break order: graph sorts before vector.
type SourceKind int

const (
	SourceGraph SourceKind = iota
	SourceVector
)

// String returns the wire name of the source kind.
func (k SourceKind) String() string {
	switch k {
	case SourceGraph:
		return "graph"
	case SourceVector:
		return "vector"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k SourceKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Origin locates evidence in the stores.
type Origin struct {
	DocumentID DocumentID `json:"document_id"`
	ItemID     ID         `json:"item_id"`
	Title      string     `json:"title,omitempty"`
}

// Evidence is one unit of retrieved context.
type Evidence struct {
	Kind      SourceKind `json:"type"`
	Content   string     `json:"content"`
	Score     float64    `json:"relevance"`
	Origin    Origin     `json:"metadata"`
	DedupeKey string     `json:"-"`
}

// NewEvidence builds an Evidence with a clamped score and a dedupe key derived
// from its content and origin.
func NewEvidence(kind SourceKind, content string, score float64, origin Origin) Evidence {
	return Evidence{
		Kind:      kind,
		Content:   content,
		Score:     ClampUnit(score),
		Origin:    origin,
		DedupeKey: DedupeKey(content, origin),
	}
}

// DedupeKey is a stable hash of evidence content and origin.
func DedupeKey(content string, origin Origin) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(origin.DocumentID))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatUint(uint64(origin.ItemID), 16)))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

// KnowledgeContext is the merged, ranked and deduplicated evidence for one query.
type KnowledgeContext struct {
	Evidence     []Evidence `json:"evidence"`
	GraphFailed  bool       `json:"graph_failed"`
	VectorFailed bool       `json:"vector_failed"`
}

// MeanRelevance returns the mean score of the context's evidence, or 0 when empty.
func (kc *KnowledgeContext) MeanRelevance() float64 {
	if kc == nil || len(kc.Evidence) == 0 {
		return 0
	}
	var sum float64
	for _, e := range kc.Evidence {
		sum += e.Score
	}
	return sum / float64(len(kc.Evidence))
}

// ClampUnit clamps v into [0,1].
func ClampUnit(v float64) float64 {
	if v != v || v < 0 { // NaN or negative
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
