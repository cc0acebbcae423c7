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

package ingestion

import (
	"context"
	"errors"

	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/retry"
)

// processor is an internal interface for deriving one kind of artifact from a
// document's chunks. Implementations write to one store each.
type processor interface {
	// process writes the artifacts for doc in one batched store write and
	// returns the counts it contributed.
	process(ctx context.Context, doc core.DocumentID, chunks []core.Chunk) (core.IngestionStats, error)

	// purge removes every artifact tagged with doc.
	purge(ctx context.Context, doc core.DocumentID) error
}

// retryable marks inputs a service rejected as permanent so they fail on the
// first attempt. Everything else is retried.
func retryable(err error) error {
	if errors.Is(err, core.ErrValidation) {
		return retry.Permanent(err)
	}
	return err
}
