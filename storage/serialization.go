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

package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/sibyl/core"
)

// encoder appends MUS encoded fields to a pre-sized buffer.
type encoder struct {
	bs []byte
	n  int
}

func (e *encoder) uint64(v uint64)   { e.n += varint.Uint64.Marshal(v, e.bs[e.n:]) }
func (e *encoder) int(v int)         { e.n += varint.Int.Marshal(v, e.bs[e.n:]) }
func (e *encoder) int64(v int64)     { e.n += varint.Int64.Marshal(v, e.bs[e.n:]) }
func (e *encoder) float64(v float64) { e.uint64(math.Float64bits(v)) }
func (e *encoder) string(v string)   { e.n += ord.String.Marshal(v, e.bs[e.n:]) }

func (e *encoder) vector(v []float32) {
	e.int(len(v))
	for _, f := range v {
		binary.LittleEndian.PutUint32(e.bs[e.n:], math.Float32bits(f))
		e.n += 4
	}
}

func float64Size(v float64) int {
	return varint.Uint64.Size(math.Float64bits(v))
}

// vectorSize is the length prefix plus four fixed bytes per component.
func vectorSize(v []float32) int {
	return varint.Int.Size(len(v)) + 4*len(v)
}

// decoder reads MUS encoded fields, keeping the first error.
type decoder struct {
	bs  []byte
	n   int
	err error
}

func (d *decoder) uint64() (v uint64) {
	if d.err != nil {
		return
	}
	var n int
	v, n, d.err = varint.Uint64.Unmarshal(d.bs[d.n:])
	d.n += n
	return
}

func (d *decoder) int() (v int) {
	if d.err != nil {
		return
	}
	var n int
	v, n, d.err = varint.Int.Unmarshal(d.bs[d.n:])
	d.n += n
	return
}

func (d *decoder) int64() (v int64) {
	if d.err != nil {
		return
	}
	var n int
	v, n, d.err = varint.Int64.Unmarshal(d.bs[d.n:])
	d.n += n
	return
}

func (d *decoder) float64() float64 {
	return math.Float64frombits(d.uint64())
}

func (d *decoder) string() (v string) {
	if d.err != nil {
		return
	}
	var n int
	v, n, d.err = ord.String.Unmarshal(d.bs[d.n:])
	d.n += n
	return
}

func (d *decoder) vector() []float32 {
	length := d.int()
	if d.err != nil {
		return nil
	}
	if length < 0 || 4*length > len(d.bs)-d.n {
		d.err = ErrTruncatedData
		return nil
	}
	v := make([]float32, length)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(d.bs[d.n:]))
		d.n += 4
	}
	return v
}

func (d *decoder) finish() error {
	if d.err != nil {
		return fmt.Errorf("%w: %w", ErrSerializationFailed, d.err)
	}
	return nil
}

func timeToMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func microsToTime(us int64) time.Time {
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.ID(id), nil
}

// MarshalEntity serializes an Entity to bytes.
func MarshalEntity(e *core.Entity) []byte {
	size := varint.Uint64.Size(uint64(e.ID)) +
		ord.String.Size(string(e.DocumentID)) +
		varint.Int.Size(e.ChunkIndex) +
		ord.String.Size(e.Name) +
		ord.String.Size(e.Type) +
		float64Size(e.Confidence) +
		ord.String.Size(e.Context)
	enc := &encoder{bs: make([]byte, size)}
	enc.uint64(uint64(e.ID))
	enc.string(string(e.DocumentID))
	enc.int(e.ChunkIndex)
	enc.string(e.Name)
	enc.string(e.Type)
	enc.float64(e.Confidence)
	enc.string(e.Context)
	return enc.bs
}

// UnmarshalEntity deserializes an Entity from bytes.
func UnmarshalEntity(data []byte) (*core.Entity, error) {
	dec := &decoder{bs: data}
	e := &core.Entity{
		ID:         core.ID(dec.uint64()),
		DocumentID: core.DocumentID(dec.string()),
		ChunkIndex: dec.int(),
		Name:       dec.string(),
		Type:       dec.string(),
		Confidence: dec.float64(),
		Context:    dec.string(),
	}
	if err := dec.finish(); err != nil {
		return nil, err
	}
	return e, nil
}

// MarshalRelationship serializes a Relationship to bytes.
func MarshalRelationship(r *core.Relationship) []byte {
	size := varint.Uint64.Size(uint64(r.ID)) +
		ord.String.Size(string(r.DocumentID)) +
		varint.Int.Size(r.ChunkIndex) +
		varint.Uint64.Size(uint64(r.SourceID)) +
		varint.Uint64.Size(uint64(r.TargetID)) +
		ord.String.Size(r.SourceName) +
		ord.String.Size(r.TargetName) +
		ord.String.Size(r.Type) +
		float64Size(r.Confidence) +
		ord.String.Size(r.Context)
	enc := &encoder{bs: make([]byte, size)}
	enc.uint64(uint64(r.ID))
	enc.string(string(r.DocumentID))
	enc.int(r.ChunkIndex)
	enc.uint64(uint64(r.SourceID))
	enc.uint64(uint64(r.TargetID))
	enc.string(r.SourceName)
	enc.string(r.TargetName)
	enc.string(r.Type)
	enc.float64(r.Confidence)
	enc.string(r.Context)
	return enc.bs
}

// UnmarshalRelationship deserializes a Relationship from bytes.
func UnmarshalRelationship(data []byte) (*core.Relationship, error) {
	dec := &decoder{bs: data}
	r := &core.Relationship{
		ID:         core.ID(dec.uint64()),
		DocumentID: core.DocumentID(dec.string()),
		ChunkIndex: dec.int(),
		SourceID:   core.ID(dec.uint64()),
		TargetID:   core.ID(dec.uint64()),
		SourceName: dec.string(),
		TargetName: dec.string(),
		Type:       dec.string(),
		Confidence: dec.float64(),
		Context:    dec.string(),
	}
	if err := dec.finish(); err != nil {
		return nil, err
	}
	return r, nil
}

// MarshalEmbedding serializes an Embedding to bytes.
func MarshalEmbedding(e *core.Embedding) []byte {
	size := varint.Uint64.Size(uint64(e.ID)) +
		ord.String.Size(string(e.DocumentID)) +
		varint.Int.Size(e.ChunkIndex) +
		ord.String.Size(e.Text) +
		vectorSize(e.Vector)
	enc := &encoder{bs: make([]byte, size)}
	enc.uint64(uint64(e.ID))
	enc.string(string(e.DocumentID))
	enc.int(e.ChunkIndex)
	enc.string(e.Text)
	enc.vector(e.Vector)
	return enc.bs
}

// UnmarshalEmbedding deserializes an Embedding from bytes.
func UnmarshalEmbedding(data []byte) (*core.Embedding, error) {
	dec := &decoder{bs: data}
	e := &core.Embedding{
		ID:         core.ID(dec.uint64()),
		DocumentID: core.DocumentID(dec.string()),
		ChunkIndex: dec.int(),
		Text:       dec.string(),
		Vector:     dec.vector(),
	}
	if err := dec.finish(); err != nil {
		return nil, err
	}
	return e, nil
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(d *core.Document) []byte {
	size := ord.String.Size(string(d.ID)) +
		ord.String.Size(d.Title) +
		ord.String.Size(d.Filename) +
		ord.String.Size(d.Text) +
		ord.String.Size(d.Checksum) +
		ord.String.Size(d.Language) +
		varint.Int.Size(d.ChunkCount) +
		varint.Int.Size(d.EntityCount) +
		varint.Int.Size(d.RelationshipCount) +
		varint.Int.Size(d.EmbeddingCount) +
		varint.Int64.Size(timeToMicros(d.IngestedAt))
	enc := &encoder{bs: make([]byte, size)}
	enc.string(string(d.ID))
	enc.string(d.Title)
	enc.string(d.Filename)
	enc.string(d.Text)
	enc.string(d.Checksum)
	enc.string(d.Language)
	enc.int(d.ChunkCount)
	enc.int(d.EntityCount)
	enc.int(d.RelationshipCount)
	enc.int(d.EmbeddingCount)
	enc.int64(timeToMicros(d.IngestedAt))
	return enc.bs
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	dec := &decoder{bs: data}
	d := &core.Document{
		ID:                core.DocumentID(dec.string()),
		Title:             dec.string(),
		Filename:          dec.string(),
		Text:              dec.string(),
		Checksum:          dec.string(),
		Language:          dec.string(),
		ChunkCount:        dec.int(),
		EntityCount:       dec.int(),
		RelationshipCount: dec.int(),
		EmbeddingCount:    dec.int(),
		IngestedAt:        microsToTime(dec.int64()),
	}
	if err := dec.finish(); err != nil {
		return nil, err
	}
	return d, nil
}

// MarshalCheckpoint serializes a Checkpoint to bytes.
func MarshalCheckpoint(c *core.Checkpoint) []byte {
	size := ord.String.Size(c.Processor) +
		varint.Uint64.Size(uint64(c.LastID)) +
		varint.Int.Size(c.Processed) +
		varint.Int64.Size(timeToMicros(c.UpdatedAt))
	enc := &encoder{bs: make([]byte, size)}
	enc.string(c.Processor)
	enc.uint64(uint64(c.LastID))
	enc.int(c.Processed)
	enc.int64(timeToMicros(c.UpdatedAt))
	return enc.bs
}

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	dec := &decoder{bs: data}
	c := &core.Checkpoint{
		Processor: dec.string(),
		LastID:    core.ID(dec.uint64()),
		Processed: dec.int(),
		UpdatedAt: microsToTime(dec.int64()),
	}
	if err := dec.finish(); err != nil {
		return nil, err
	}
	return c, nil
}
