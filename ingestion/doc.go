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

// Package ingestion populates the graph and vector stores from documents.
//
// The Pipeline type processes batches of files. For every file it:
//   - Derives a content-addressed document id and skips or replaces a
//     previously ingested generation
//   - Parses the bytes to text and splits it into overlapping word chunks
//   - Extracts entities and relationships into the graph store and embeds the
//     chunks into the vector store, concurrently
//   - Registers the document last, so it only becomes visible once complete
//
// Any failure rolls back the file's artifacts and is reported for that file
// alone. Files of a batch are processed on a bounded worker pool, and batch
// progress can be polled by id. A Watcher feeds a directory into the pipeline.
package ingestion
