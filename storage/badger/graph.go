package badger

import (
	"context"
	"slices"
	"strings"
	"unicode"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/storage"
)

// GraphStore implements storage.GraphStore on BadgerDB.
//
// Entities are indexed by the lowercase tokens of their names; relationships are
// reachable from both endpoints through adjacency keys. Every row has a document
// tag key so a document's subgraph can be deleted without scanning.
type GraphStore struct {
	backend *Backend
}

var _ storage.GraphStore = (*GraphStore)(nil)

// NewGraphStore creates a new GraphStore.
func NewGraphStore(backend *Backend) *GraphStore {
	return &GraphStore{
		backend: backend,
	}
}

// Close releases resources. GraphStore has no resources to release.
func (s *GraphStore) Close() error {
	return nil
}

// Ping delegates to the backend.
func (s *GraphStore) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// UpsertGraph writes the entities and relationships of one document. Large
// documents are committed across several transactions.
func (s *GraphStore) UpsertGraph(ctx context.Context, doc core.DocumentID, entities []*core.Entity, relationships []*core.Relationship) error {
	for _, e := range entities {
		if err := core.ValidateEntity(e); err != nil {
			return err
		}
		if e.DocumentID != doc {
			return core.ErrInvalidEntity
		}
	}
	for _, r := range relationships {
		if err := core.ValidateRelationship(r); err != nil {
			return err
		}
		if r.DocumentID != doc {
			return core.ErrInvalidRelationship
		}
	}

	return s.backend.WithBatch(func(wb *badger.WriteBatch) error {
		for _, e := range entities {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := wb.Set(makeEntityKey(e.ID), storage.MarshalEntity(e)); err != nil {
				return err
			}
			for _, token := range NameTokens(e.Name) {
				if err := wb.Set(makeEntityTokenKey(token, e.ID), nil); err != nil {
					return err
				}
			}
			if err := wb.Set(makeGraphDocKey(doc, graphDocEntityTag, e.ID), nil); err != nil {
				return err
			}
		}
		for _, r := range relationships {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := wb.Set(makeRelationshipKey(r.ID), storage.MarshalRelationship(r)); err != nil {
				return err
			}
			if err := wb.Set(makeAdjacencyKey(r.SourceID, r.ID), nil); err != nil {
				return err
			}
			if err := wb.Set(makeAdjacencyKey(r.TargetID, r.ID), nil); err != nil {
				return err
			}
			if err := wb.Set(makeGraphDocKey(doc, graphDocRelationTag, r.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// FindEntities returns entities having a name token equal to any of the terms.
// Entities matching more terms come first.
func (s *GraphStore) FindEntities(ctx context.Context, terms []string, limit int) ([]*core.Entity, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	hits := make(map[core.ID]int)
	var order []core.ID
	var entities []*core.Entity

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, term := range terms {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" {
				continue
			}
			prefix := append(makePartialEntityTokenKey(term), 0)
			for _, key := range collectKeys(tx, prefix) {
				id := idSuffix(key)
				if _, seen := hits[id]; !seen {
					order = append(order, id)
				}
				hits[id]++
			}
		}

		// Most matched terms first, insertion order otherwise
		slices.SortStableFunc(order, func(a, b core.ID) int {
			return hits[b] - hits[a]
		})
		if len(order) > limit {
			order = order[:limit]
		}

		for _, id := range order {
			if err := ctx.Err(); err != nil {
				return err
			}
			entity, err := readValue(tx, makeEntityKey(id), storage.UnmarshalEntity)
			if err != nil {
				return err
			}
			if entity != nil {
				entities = append(entities, entity)
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return entities, nil
}

// GetEntities returns the entities with the given IDs, skipping missing ones.
func (s *GraphStore) GetEntities(ctx context.Context, ids ...core.ID) ([]*core.Entity, error) {
	entities := make([]*core.Entity, 0, len(ids))
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			entity, err := readValue(tx, makeEntityKey(id), storage.UnmarshalEntity)
			if err != nil {
				return err
			}
			if entity != nil {
				entities = append(entities, entity)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return entities, nil
}

// GetRelationships returns the relationships touching any of the given entities.
func (s *GraphStore) GetRelationships(ctx context.Context, entityIDs ...core.ID) ([]*core.Relationship, error) {
	seen := make(map[core.ID]bool)
	var rels []*core.Relationship

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, entityID := range entityIDs {
			for _, key := range collectKeys(tx, makePartialAdjacencyKey(entityID)) {
				relID := idSuffix(key)
				if seen[relID] {
					continue
				}
				seen[relID] = true

				rel, err := readValue(tx, makeRelationshipKey(relID), storage.UnmarshalRelationship)
				if err != nil {
					return err
				}
				if rel != nil {
					rels = append(rels, rel)
				}
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return rels, nil
}

// HasDocument reports whether any graph row is tagged with doc.
func (s *GraphStore) HasDocument(ctx context.Context, doc core.DocumentID) (bool, error) {
	var found bool
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		found = hasPrefix(tx, makePartialGraphDocKey(doc))
		return nil
	}, false)
	return found, err
}

// DeleteDocument removes every entity and relationship tagged with doc,
// including their index keys. Keys are collected in one read transaction and
// deleted through a write batch.
func (s *GraphStore) DeleteDocument(ctx context.Context, doc core.DocumentID) (int, error) {
	var doomed [][]byte
	removed := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, tagKey := range collectKeys(tx, makePartialGraphDocKey(doc)) {
			if err := ctx.Err(); err != nil {
				return err
			}
			id := idSuffix(tagKey)
			tag := tagKey[len(tagKey)-9]

			switch tag {
			case graphDocEntityTag:
				entity, err := readValue(tx, makeEntityKey(id), storage.UnmarshalEntity)
				if err != nil {
					return err
				}
				if entity != nil {
					for _, token := range NameTokens(entity.Name) {
						doomed = append(doomed, makeEntityTokenKey(token, id))
					}
					doomed = append(doomed, makeEntityKey(id))
					removed++
				}
			case graphDocRelationTag:
				rel, err := readValue(tx, makeRelationshipKey(id), storage.UnmarshalRelationship)
				if err != nil {
					return err
				}
				if rel != nil {
					doomed = append(doomed,
						makeAdjacencyKey(rel.SourceID, id),
						makeAdjacencyKey(rel.TargetID, id),
						makeRelationshipKey(id))
					removed++
				}
			}
			doomed = append(doomed, tagKey)
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	err = s.backend.WithBatch(func(wb *badger.WriteBatch) error {
		for _, key := range doomed {
			if err := wb.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// NameTokens splits an entity name into lowercase index tokens.
func NameTokens(name string) []string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	slices.Sort(fields)
	return slices.Compact(fields)
}
