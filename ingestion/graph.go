package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/sibyl/ai"
	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/retry"
	"github.com/poiesic/sibyl/storage"
)

const maxEntityContext = 300

// graphProcessor extracts entities and relationships from chunks into the
// graph store.
type graphProcessor struct {
	store      storage.GraphStore
	extractor  ai.EntityExtractor
	attempts   int
	retryDelay time.Duration
	logger     *slog.Logger
}

var _ processor = (*graphProcessor)(nil)

// newGraphProcessor creates a new graph processor.
func newGraphProcessor(store storage.GraphStore, extractor ai.EntityExtractor, attempts int, retryDelay time.Duration, logger *slog.Logger) (*graphProcessor, error) {
	if store == nil {
		return nil, ErrGraphStoreRequired
	}
	if extractor == nil {
		return nil, fmt.Errorf("entity extractor required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &graphProcessor{
		store:      store,
		extractor:  extractor,
		attempts:   max(attempts, 1),
		retryDelay: retryDelay,
		logger:     logger.With("processor", "graph"),
	}, nil
}

// docGraph accumulates the entities and relationships of one document.
// Entities repeated across chunks collapse to one row keeping the highest
// confidence.
type docGraph struct {
	doc           core.DocumentID
	entities      []*core.Entity
	entityByID    map[core.ID]*core.Entity
	idByName      map[string]core.ID
	relationships []*core.Relationship
	relByID       map[core.ID]*core.Relationship
}

func newDocGraph(doc core.DocumentID) *docGraph {
	return &docGraph{
		doc:        doc,
		entityByID: make(map[core.ID]*core.Entity),
		idByName:   make(map[string]core.ID),
		relByID:    make(map[core.ID]*core.Relationship),
	}
}

func (g *docGraph) addEntity(chunk int, e ai.ExtractedEntity) core.ID {
	name := strings.TrimSpace(e.Name)
	key := strings.ToLower(name)
	entityType := ai.NormalizeEntityType(e.Type)
	id := core.EntityID(g.doc, entityType, key)

	if cur, ok := g.entityByID[id]; ok {
		if c := core.ClampUnit(e.Confidence); c > cur.Confidence {
			cur.Confidence = c
			cur.Context = clip(e.Context, maxEntityContext)
		}
		return id
	}
	entity := &core.Entity{
		ID:         id,
		DocumentID: g.doc,
		ChunkIndex: chunk,
		Name:       name,
		Type:       entityType,
		Confidence: core.ClampUnit(e.Confidence),
		Context:    clip(e.Context, maxEntityContext),
	}
	g.entities = append(g.entities, entity)
	g.entityByID[id] = entity
	if _, ok := g.idByName[key]; !ok {
		g.idByName[key] = id
	}
	return id
}

func (g *docGraph) addRelationship(chunk int, local map[string]core.ID, r ai.ExtractedRelationship) {
	resolve := func(name string) (core.ID, bool) {
		key := strings.ToLower(strings.TrimSpace(name))
		if id, ok := local[key]; ok {
			return id, true
		}
		id, ok := g.idByName[key]
		return id, ok
	}
	sourceID, ok := resolve(r.Source)
	if !ok {
		return
	}
	targetID, ok := resolve(r.Target)
	if !ok || sourceID == targetID {
		return
	}

	relType := ai.NormalizeRelationshipType(r.Type)
	id := core.RelationshipID(g.doc, sourceID, relType, targetID)
	if cur, ok := g.relByID[id]; ok {
		cur.Confidence = max(cur.Confidence, core.ClampUnit(r.Confidence))
		return
	}
	rel := &core.Relationship{
		ID:         id,
		DocumentID: g.doc,
		ChunkIndex: chunk,
		SourceID:   sourceID,
		TargetID:   targetID,
		SourceName: g.entityByID[sourceID].Name,
		TargetName: g.entityByID[targetID].Name,
		Type:       relType,
		Confidence: core.ClampUnit(r.Confidence),
		Context:    clip(r.Context, maxEntityContext),
	}
	g.relationships = append(g.relationships, rel)
	g.relByID[id] = rel
}

// process extracts the graph of every chunk and writes the document's graph
// in one batched write. Extraction is sequential; the extractor does not batch.
func (gp *graphProcessor) process(ctx context.Context, doc core.DocumentID, chunks []core.Chunk) (core.IngestionStats, error) {
	gp.logger.Debug("extracting graph", "document_id", doc, "chunks", len(chunks))

	graph := newDocGraph(doc)
	for _, chunk := range chunks {
		var extraction *ai.Extraction
		err := retry.RetryWithBackoff(ctx, func() error {
			var err error
			extraction, err = gp.extractor.ExtractGraph(ctx, chunk.Text)
			return retryable(err)
		}, gp.attempts, gp.retryDelay)
		if err != nil {
			return core.IngestionStats{}, fmt.Errorf("chunk %d extraction failed: %w", chunk.Index, err)
		}
		if extraction == nil {
			continue
		}

		local := make(map[string]core.ID, len(extraction.Entities))
		for _, e := range extraction.Entities {
			if strings.TrimSpace(e.Name) == "" {
				continue
			}
			local[strings.ToLower(strings.TrimSpace(e.Name))] = graph.addEntity(chunk.Index, e)
		}
		for _, r := range extraction.Relationships {
			graph.addRelationship(chunk.Index, local, r)
		}
	}

	if err := gp.store.UpsertGraph(ctx, doc, graph.entities, graph.relationships); err != nil {
		return core.IngestionStats{}, err
	}
	return core.IngestionStats{
		Entities:      len(graph.entities),
		Relationships: len(graph.relationships),
	}, nil
}

func (gp *graphProcessor) purge(ctx context.Context, doc core.DocumentID) error {
	removed, err := gp.store.DeleteDocument(ctx, doc)
	if err == nil && removed > 0 {
		gp.logger.Debug("purged graph", "document_id", doc, "removed", removed)
	}
	return err
}

// clip shortens s to at most n runes.
func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
