package retrieval

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/storage"
)

const (
	defaultMinGraphRelevance = 0.1
	defaultHopDecay          = 0.5
	maxListedRelationships   = 3
)

// GraphOption configures a GraphSource.
type GraphOption func(*GraphSource) error

// WithMinRelevance sets the score an entity must exceed to become evidence.
func WithMinRelevance(min float64) GraphOption {
	return func(s *GraphSource) error {
		if min < 0 || min >= 1 {
			return fmt.Errorf("min relevance must be in [0,1), got %v", min)
		}
		s.minRelevance = min
		return nil
	}
}

// WithHopDecay sets the factor applied to entities reached over one relationship.
// Zero disables expansion.
func WithHopDecay(decay float64) GraphOption {
	return func(s *GraphSource) error {
		if decay < 0 || decay > 1 {
			return fmt.Errorf("hop decay must be in [0,1], got %v", decay)
		}
		s.hopDecay = decay
		return nil
	}
}

// WithGraphLogger sets a custom logger.
func WithGraphLogger(logger *slog.Logger) GraphOption {
	return func(s *GraphSource) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// GraphSource answers queries from the entity graph.
//
// An entity whose name shares keywords with the query scores
// matched/total keywords times its extraction confidence. Entities one
// relationship away score the parent score times the relationship confidence
// times the hop decay.
type GraphSource struct {
	graph        storage.GraphStore
	docs         storage.DocumentRepository
	minRelevance float64
	hopDecay     float64
	logger       *slog.Logger
}

var _ Source = (*GraphSource)(nil)

// NewGraphSource creates a graph relevance source.
func NewGraphSource(graph storage.GraphStore, docs storage.DocumentRepository, opts ...GraphOption) (*GraphSource, error) {
	if graph == nil {
		return nil, ErrGraphStoreRequired
	}
	if docs == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	s := &GraphSource{
		graph:        graph,
		docs:         docs,
		minRelevance: defaultMinGraphRelevance,
		hopDecay:     defaultHopDecay,
		logger:       slog.Default().With("component", "graph-source"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Kind returns core.SourceGraph.
func (s *GraphSource) Kind() core.SourceKind {
	return core.SourceGraph
}

type scoredEntity struct {
	entity *core.Entity
	score  float64
	// via is the relationship that reached a hop entity
	via *core.Relationship
}

// Search returns up to limit graph evidence items for query.
func (s *GraphSource) Search(ctx context.Context, query string, limit int) ([]core.Evidence, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	keywords := Keywords(query)
	if len(keywords) == 0 {
		return nil, nil
	}

	entities, err := s.graph.FindEntities(ctx, keywords, limit*4)
	if err != nil {
		return nil, err
	}

	direct := make(map[core.ID]*scoredEntity)
	var directIDs []core.ID
	for _, e := range entities {
		score := matchFraction(keywords, e.Name) * e.Confidence
		if score <= s.minRelevance {
			continue
		}
		direct[e.ID] = &scoredEntity{entity: e, score: score}
		directIDs = append(directIDs, e.ID)
	}
	if len(directIDs) == 0 {
		return nil, nil
	}

	rels, err := s.graph.GetRelationships(ctx, directIDs...)
	if err != nil {
		return nil, err
	}
	relsByEntity := make(map[core.ID][]*core.Relationship)
	for _, r := range rels {
		relsByEntity[r.SourceID] = append(relsByEntity[r.SourceID], r)
		relsByEntity[r.TargetID] = append(relsByEntity[r.TargetID], r)
	}

	hops, err := s.expand(ctx, direct, rels)
	if err != nil {
		return nil, err
	}

	scored := make([]*scoredEntity, 0, len(direct)+len(hops))
	for _, id := range directIDs {
		scored = append(scored, direct[id])
	}
	scored = append(scored, hops...)
	slices.SortStableFunc(scored, func(a, b *scoredEntity) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.entity.ID, b.entity.ID)
	})

	filter := newCommitted(s.docs)
	evidence := make([]core.Evidence, 0, min(limit, len(scored)))
	for _, se := range scored {
		if len(evidence) >= limit {
			break
		}
		doc, err := filter.lookup(ctx, se.entity.DocumentID)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}
		content := describeEntity(se, relsByEntity[se.entity.ID])
		evidence = append(evidence, core.NewEvidence(core.SourceGraph, content, se.score, core.Origin{
			DocumentID: se.entity.DocumentID,
			ItemID:     se.entity.ID,
			Title:      doc.Title,
		}))
	}

	s.logger.Debug("graph search",
		"keywords", len(keywords),
		"direct", len(direct),
		"hops", len(hops),
		"evidence", len(evidence))
	return evidence, nil
}

// expand scores the entities one relationship away from the direct hits.
func (s *GraphSource) expand(ctx context.Context, direct map[core.ID]*scoredEntity, rels []*core.Relationship) ([]*scoredEntity, error) {
	if s.hopDecay == 0 {
		return nil, nil
	}

	best := make(map[core.ID]*scoredEntity)
	for _, r := range rels {
		for _, pair := range [][2]core.ID{{r.SourceID, r.TargetID}, {r.TargetID, r.SourceID}} {
			parent, ok := direct[pair[0]]
			if !ok {
				continue
			}
			if _, isDirect := direct[pair[1]]; isDirect {
				continue
			}
			score := parent.score * r.Confidence * s.hopDecay
			if score <= s.minRelevance {
				continue
			}
			if cur, ok := best[pair[1]]; !ok || score > cur.score {
				best[pair[1]] = &scoredEntity{score: score, via: r}
			}
		}
	}
	if len(best) == 0 {
		return nil, nil
	}

	ids := make([]core.ID, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	entities, err := s.graph.GetEntities(ctx, ids...)
	if err != nil {
		return nil, err
	}

	hops := make([]*scoredEntity, 0, len(entities))
	for _, e := range entities {
		se := best[e.ID]
		se.entity = e
		hops = append(hops, se)
	}
	return hops, nil
}

// describeEntity renders an entity and its neighbourhood as evidence text.
func describeEntity(se *scoredEntity, rels []*core.Relationship) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)", se.entity.Name, se.entity.Type)
	if text := strings.TrimSpace(se.entity.Context); text != "" {
		b.WriteString(": ")
		b.WriteString(text)
	}

	listed := rels
	if se.via != nil {
		listed = []*core.Relationship{se.via}
	}
	if len(listed) > maxListedRelationships {
		listed = listed[:maxListedRelationships]
	}
	if len(listed) > 0 {
		b.WriteString(". Relationships: ")
		for i, r := range listed {
			if i > 0 {
				b.WriteString("; ")
			}
			fmt.Fprintf(&b, "%s %s %s", r.SourceName, r.Type, r.TargetName)
		}
	}
	return b.String()
}
