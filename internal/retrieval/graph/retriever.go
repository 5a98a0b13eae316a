package graph

import (
	"context"

	"buildrag/internal/config"
	"buildrag/internal/graphstore"
	"buildrag/internal/logging"
	"buildrag/pkg/types"
)

// Expansion caps.
const (
	defaultRelationDepth = 2
	fanOutPerLevel       = 20
	relatedEntityLimit   = 5
)

// repository is the slice of the graph repository the retriever reads from.
type repository interface {
	FindEntities(ctx context.Context, kind types.EntityKind, field, value, docID string) ([]types.GraphEntity, error)
	GetComponentWithRelations(ctx context.Context, code string) (*graphstore.ComponentView, error)
	RelatedDocuments(ctx context.Context, entityKeys []string) ([]graphstore.RelatedDocument, error)
}

// Retriever is the graph retrieval channel. It degrades to empty output when
// the graph store misbehaves; it never propagates a store error upward.
type Retriever struct {
	repo   repository
	cfg    *config.RetrievalConfig
	logger logging.Logger
}

// New creates the channel over a graph repository.
func New(repo repository, cfg *config.RetrievalConfig) *Retriever {
	return &Retriever{repo: repo, cfg: cfg, logger: logging.WithComponent("graph-retrieval")}
}

// Search links query text to graph entities and returns up to topK results
// with rendered context. docID, when set, scopes lookups to that document.
func (r *Retriever) Search(ctx context.Context, query string, topK int, docID string) []types.GraphResult {
	if topK <= 0 {
		return nil
	}

	probes := linkEntities(query, r.maxEntities())
	if len(probes) == 0 {
		return nil
	}

	var results []types.GraphResult
	for _, p := range probes {
		if len(results) >= topK {
			break
		}
		entities, err := r.repo.FindEntities(ctx, p.kind, p.field, p.value, docID)
		if err != nil {
			r.logger.Warn("graph lookup failed, degrading",
				"kind", p.kind, "field", p.field, "value", p.value, "error", err)
			continue
		}
		for i := range entities {
			if len(results) >= topK {
				break
			}
			results = append(results, r.buildResult(ctx, &entities[i], p.score))
		}
	}
	return results
}

// RelatedDocuments ranks documents owning the entities behind the given
// results. Best-effort like the rest of the channel.
func (r *Retriever) RelatedDocuments(ctx context.Context, results []types.GraphResult) []graphstore.RelatedDocument {
	keys := make([]string, 0, len(results))
	for i := range results {
		keys = append(keys, results[i].Entity.Key())
	}
	docs, err := r.repo.RelatedDocuments(ctx, keys)
	if err != nil {
		r.logger.Warn("related documents lookup failed", "error", err)
		return nil
	}
	return docs
}

func (r *Retriever) buildResult(ctx context.Context, entity *types.GraphEntity, score float64) types.GraphResult {
	result := types.GraphResult{
		Entity: *entity,
		Score:  score,
		Source: types.SourceGraph,
	}

	if entity.Kind == types.EntityComponent {
		relations, related, text := r.expandComponent(ctx, entity)
		result.Relations = relations
		result.RelatedEntities = related
		result.Text = text
	} else {
		result.Text = renderEntity(entity)
	}

	result.Text = truncateRunes(result.Text, r.cfg.ContextBudget)
	return result
}

// expandComponent walks the component neighborhood up to the configured
// depth. The first level contributes relations and context; deeper levels
// contribute related entities only, with bounded fan-out.
func (r *Retriever) expandComponent(ctx context.Context, entity *types.GraphEntity) ([]types.GraphRelation, []types.GraphEntity, string) {
	view, err := r.repo.GetComponentWithRelations(ctx, entity.Code)
	if err != nil {
		r.logger.Warn("component expansion failed", "code", entity.Code, "error", err)
		return nil, nil, renderEntity(entity)
	}
	if view == nil {
		return nil, nil, renderEntity(entity)
	}

	relations := viewRelations(view)
	related := collectRelated(view, relatedEntityLimit)
	text := renderComponentView(view)

	// Deeper levels add related entities from connected components.
	depth := r.cfg.RelationDepth
	if depth <= 0 {
		depth = defaultRelationDepth
	}
	frontier := view.Connected
	for level := 2; level <= depth && len(frontier) > 0; level++ {
		if len(frontier) > fanOutPerLevel {
			frontier = frontier[:fanOutPerLevel]
		}
		var next []types.GraphEntity
		for i := range frontier {
			if len(related) >= relatedEntityLimit {
				break
			}
			sub, err := r.repo.GetComponentWithRelations(ctx, frontier[i].Code)
			if err != nil || sub == nil {
				continue
			}
			for _, e := range collectRelated(sub, relatedEntityLimit-len(related)) {
				related = append(related, e)
			}
			next = append(next, sub.Connected...)
		}
		frontier = next
	}

	return relations, related, text
}

// viewRelations reconstructs the edge records behind a component view.
func viewRelations(view *graphstore.ComponentView) []types.GraphRelation {
	from := &view.Component
	var relations []types.GraphRelation
	appendRel := func(relType types.RelationType, targets []types.GraphEntity) {
		for i := range targets {
			relations = append(relations, types.GraphRelation{
				Type:     relType,
				FromKey:  from.Key(),
				ToKey:    targets[i].Key(),
				FromKind: from.Kind,
				ToKind:   targets[i].Kind,
			})
		}
	}
	appendRel(types.RelationUsesMaterial, view.Materials)
	appendRel(types.RelationHasDimension, view.Dimensions)
	appendRel(types.RelationRefersTo, view.Specifications)
	appendRel(types.RelationConnectedTo, view.Connected)
	return relations
}

func collectRelated(view *graphstore.ComponentView, limit int) []types.GraphEntity {
	if limit <= 0 {
		return nil
	}
	var related []types.GraphEntity
	for _, group := range [][]types.GraphEntity{view.Materials, view.Dimensions, view.Specifications, view.Connected} {
		for i := range group {
			if len(related) >= limit {
				return related
			}
			related = append(related, group[i])
		}
	}
	return related
}

func (r *Retriever) maxEntities() int {
	if r.cfg.MaxEntities > 0 {
		return r.cfg.MaxEntities
	}
	return 5
}
