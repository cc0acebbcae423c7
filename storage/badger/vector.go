package badger

import (
	"context"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/storage"
)

// VectorStore implements storage.VectorStore on BadgerDB with a brute force
// cosine similarity scan.
type VectorStore struct {
	backend *Backend
}

var _ storage.VectorStore = (*VectorStore)(nil)

// NewVectorStore creates a new VectorStore.
func NewVectorStore(backend *Backend) *VectorStore {
	return &VectorStore{
		backend: backend,
	}
}

// Close releases resources. VectorStore has no resources to release.
func (s *VectorStore) Close() error {
	return nil
}

// Ping delegates to the backend.
func (s *VectorStore) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// UpsertEmbeddings writes the embeddings of one document. Large documents are
// committed across several transactions.
func (s *VectorStore) UpsertEmbeddings(ctx context.Context, doc core.DocumentID, embeddings []*core.Embedding) error {
	for _, e := range embeddings {
		if err := core.ValidateEmbedding(e); err != nil {
			return err
		}
		if e.DocumentID != doc {
			return core.ErrInvalidEmbedding
		}
	}

	return s.backend.WithBatch(func(wb *badger.WriteBatch) error {
		for _, e := range embeddings {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := wb.Set(makeEmbeddingKey(e.ID), storage.MarshalEmbedding(e)); err != nil {
				return err
			}
			if err := wb.Set(makeVectorDocKey(doc, e.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// FindSimilar finds embeddings similar to the given vector.
func (s *VectorStore) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.ScoredEmbedding, error) {
	if limit <= 0 || len(vector) == 0 {
		return nil, storage.ErrInvalidQuery
	}
	var results []*core.ScoredEmbedding

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(embeddingPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var emb *core.Embedding
			err := iter.Item().Value(func(val []byte) error {
				var err error
				emb, err = storage.UnmarshalEmbedding(val)
				return err
			})
			if err != nil {
				return err
			}
			if emb == nil || len(emb.Vector) == 0 {
				continue
			}

			similarity := cosineSimilarity(vector, emb.Vector)

			// Filter by threshold
			if similarity >= minSimilarity {
				results = append(results, &core.ScoredEmbedding{
					Embedding: emb,
					Score:     similarity,
				})
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}

	// Sort by similarity descending, ID ascending on ties
	slices.SortFunc(results, func(a, b *core.ScoredEmbedding) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		if a.Embedding.ID < b.Embedding.ID {
			return -1
		}
		if a.Embedding.ID > b.Embedding.ID {
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// ForEachBatch calls fn with successive batches of stored embeddings in ID
// order, starting after the embedding with ID after. Each batch is read in its
// own transaction, so fn may write to the store.
func (s *VectorStore) ForEachBatch(ctx context.Context, afterID core.ID, batchSize int, fn func([]*core.Embedding) error) error {
	if batchSize <= 0 {
		return storage.ErrInvalidQuery
	}

	var after []byte
	if afterID != 0 {
		after = makeEmbeddingKey(afterID)
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := make([]*core.Embedding, 0, batchSize)
		var lastKey []byte
		err := s.backend.WithTx(func(tx *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(embeddingPrefix + ":")
			iter := tx.NewIterator(opts)
			defer iter.Close()

			if after == nil {
				iter.Rewind()
			} else {
				iter.Seek(after)
				if iter.Valid() && slices.Equal(iter.Item().Key(), after) {
					iter.Next()
				}
			}
			for ; iter.Valid() && len(batch) < batchSize; iter.Next() {
				item := iter.Item()
				err := item.Value(func(val []byte) error {
					emb, err := storage.UnmarshalEmbedding(val)
					if err != nil {
						return err
					}
					batch = append(batch, emb)
					return nil
				})
				if err != nil {
					return err
				}
				lastKey = item.KeyCopy(nil)
			}
			return nil
		}, false)
		if err != nil {
			return err
		}

		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		after = lastKey
	}
}

// CountEmbeddings returns the number of stored embeddings.
func (s *VectorStore) CountEmbeddings(ctx context.Context) (int, error) {
	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		count = len(collectKeys(tx, []byte(embeddingPrefix+":")))
		return nil
	}, false)
	return count, err
}

// HasDocument reports whether any embedding is tagged with doc.
func (s *VectorStore) HasDocument(ctx context.Context, doc core.DocumentID) (bool, error) {
	var found bool
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		found = hasPrefix(tx, makePartialVectorDocKey(doc))
		return nil
	}, false)
	return found, err
}

// DeleteDocument removes every embedding tagged with doc and returns how many
// were removed.
func (s *VectorStore) DeleteDocument(ctx context.Context, doc core.DocumentID) (int, error) {
	var tagKeys [][]byte
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		tagKeys = collectKeys(tx, makePartialVectorDocKey(doc))
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	if len(tagKeys) == 0 {
		return 0, nil
	}

	err = s.backend.WithBatch(func(wb *badger.WriteBatch) error {
		for _, tagKey := range tagKeys {
			if err := wb.Delete(makeEmbeddingKey(idSuffix(tagKey))); err != nil {
				return err
			}
		}
		for _, tagKey := range tagKeys {
			if err := wb.Delete(tagKey); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(tagKeys), nil
}

// cosineSimilarity returns the cosine of the angle between a and b over their
// common prefix, or 0 when either is a zero vector.
func cosineSimilarity(a, b []float32) float32 {
	minLen := min(len(a), len(b))
	var dot, normA, normB float64
	for i := 0; i < minLen; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
