// Package retrieval builds the knowledge context for a query from two relevance
// sources: the entity graph and the chunk embedding index.
//
// GraphSource and VectorSource adapt the stores to the Source interface and
// normalize their scores to [0,1]. Both drop evidence whose document has not
// finished ingestion.
//
// The Coordinator runs both sources concurrently on a worker pool, each with
// its own timeout, and merges whatever came back. A failed or slow source only
// sets a flag on the result; when both fail the context is empty and retrieval
// still succeeds.
//
// Merge is deterministic: score descending, graph before vector on equal
// scores, one entry per dedupe key, truncated to the requested size.
package retrieval
