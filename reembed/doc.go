// Package reembed re-embeds every stored chunk with a new or updated embedding
// model.
//
// Chunks are read from the vector store in batches, their text is embedded again,
// and the normalized vectors are written back under the same IDs and document
// tags. Embedding calls are retried with exponential backoff and progress is
// reported to a writer as the run proceeds.
package reembed
