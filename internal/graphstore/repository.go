package graphstore

import (
	"context"
	"fmt"

	"buildrag/internal/logging"
	"buildrag/pkg/types"
)

// querier is the slice of Client the repository runs on.
type querier interface {
	ExecuteQuery(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
	ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (Counters, error)
}

// Repository maps domain entities onto graph nodes. Every node carries a
// `key` property holding the entity collision key, so merges and relation
// endpoints match uniformly across variants.
type Repository struct {
	db     querier
	logger logging.Logger
}

// NewRepository wraps a connected client.
func NewRepository(client *Client) *Repository {
	return newRepository(client)
}

func newRepository(db querier) *Repository {
	return &Repository{db: db, logger: logging.WithComponent("graph-repository")}
}

// ComponentView is a component with its first-degree neighborhood.
type ComponentView struct {
	Component      types.GraphEntity   `json:"component"`
	Materials      []types.GraphEntity `json:"materials"`
	Dimensions     []types.GraphEntity `json:"dimensions"`
	Specifications []types.GraphEntity `json:"specifications"`
	Connected      []types.GraphEntity `json:"connected"`
	Documents      []string            `json:"documents"`
}

// RelatedDocument is a document ranked by how many of the probed entities it
// owns.
type RelatedDocument struct {
	DocID     string `json:"doc_id"`
	Name      string `json:"name"`
	Incidence int    `json:"incidence"`
}

var nodeLabels = map[types.EntityKind]string{
	types.EntityDocument:      "Document",
	types.EntityComponent:     "Component",
	types.EntityMaterial:      "Material",
	types.EntitySpecification: "Specification",
	types.EntityDimension:     "Dimension",
}

var relationLabels = map[types.RelationType]string{
	types.RelationBelongsTo:    "BELONGS_TO",
	types.RelationUsesMaterial: "USES_MATERIAL",
	types.RelationHasDimension: "HAS_DIMENSION",
	types.RelationRefersTo:     "REFERS_TO",
	types.RelationConnectedTo:  "CONNECTED_TO",
}

// searchableFields are the properties FindEntities may match on.
var searchableFields = map[string]struct{}{
	"code": {}, "grade": {}, "material_type": {}, "component_type": {},
	"dim_type": {}, "value": {}, "name": {}, "doc_id": {},
}

// CreateDocumentNode upserts the Document node.
func (r *Repository) CreateDocumentNode(ctx context.Context, doc *types.Document) error {
	entity := types.GraphEntity{Kind: types.EntityDocument, DocID: doc.ID, Name: doc.Name}
	_, err := r.db.ExecuteWrite(ctx, `
		MERGE (d:Document {key: $key})
		SET d.doc_id = $doc_id, d.name = $name, d.doc_type = $doc_type`,
		map[string]any{
			"key":      entity.Key(),
			"doc_id":   doc.ID,
			"name":     doc.Name,
			"doc_type": string(doc.DocType),
		})
	if err != nil {
		return fmt.Errorf("failed to create document node %s: %w", doc.ID, err)
	}
	return nil
}

// CreateComponent upserts a component node and its BELONGS_TO edge.
func (r *Repository) CreateComponent(ctx context.Context, docID string, e *types.GraphEntity) error {
	return r.upsertOwned(ctx, docID, e, types.EntityComponent)
}

// CreateMaterial upserts a material node and its BELONGS_TO edge.
func (r *Repository) CreateMaterial(ctx context.Context, docID string, e *types.GraphEntity) error {
	return r.upsertOwned(ctx, docID, e, types.EntityMaterial)
}

// CreateSpecification upserts a specification node and its BELONGS_TO edge.
func (r *Repository) CreateSpecification(ctx context.Context, docID string, e *types.GraphEntity) error {
	return r.upsertOwned(ctx, docID, e, types.EntitySpecification)
}

// CreateDimension upserts a dimension node and its BELONGS_TO edge.
func (r *Repository) CreateDimension(ctx context.Context, docID string, e *types.GraphEntity) error {
	return r.upsertOwned(ctx, docID, e, types.EntityDimension)
}

func (r *Repository) upsertOwned(ctx context.Context, docID string, e *types.GraphEntity, want types.EntityKind) error {
	if e.Kind != want {
		return fmt.Errorf("expected %s entity, got %s", want, e.Kind)
	}
	label, ok := nodeLabels[e.Kind]
	if !ok {
		return fmt.Errorf("unknown entity kind: %s", e.Kind)
	}
	docKey := (&types.GraphEntity{Kind: types.EntityDocument, DocID: docID}).Key()

	cypher := fmt.Sprintf(`
		MERGE (n:%s {key: $key})
		SET n += $props
		MERGE (d:Document {key: $doc_key})
		MERGE (n)-[:BELONGS_TO]->(d)`, label)
	_, err := r.db.ExecuteWrite(ctx, cypher, map[string]any{
		"key":     e.Key(),
		"props":   entityProps(e),
		"doc_key": docKey,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %s %s: %w", e.Kind, e.Label(), err)
	}
	return nil
}

// CreateRelation upserts one edge between existing nodes. A missing endpoint
// is a no-op, not an error.
func (r *Repository) CreateRelation(ctx context.Context, rel *types.GraphRelation) error {
	relLabel, ok := relationLabels[rel.Type]
	if !ok {
		return fmt.Errorf("unknown relation type: %s", rel.Type)
	}
	fromLabel, ok := nodeLabels[rel.FromKind]
	if !ok {
		return fmt.Errorf("unknown relation source kind: %s", rel.FromKind)
	}
	toLabel, ok := nodeLabels[rel.ToKind]
	if !ok {
		return fmt.Errorf("unknown relation target kind: %s", rel.ToKind)
	}

	props := map[string]any{}
	for k, v := range rel.Props {
		props[k] = v
	}
	cypher := fmt.Sprintf(`
		MATCH (a:%s {key: $from}), (b:%s {key: $to})
		MERGE (a)-[r:%s]->(b)
		SET r += $props`, fromLabel, toLabel, relLabel)
	_, err := r.db.ExecuteWrite(ctx, cypher, map[string]any{
		"from":  rel.FromKey,
		"to":    rel.ToKey,
		"props": props,
	})
	if err != nil {
		return fmt.Errorf("failed to create %s relation: %w", rel.Type, err)
	}
	return nil
}

// GetComponentWithRelations loads a component and its first-degree
// neighborhood. A missing component returns nil, nil.
func (r *Repository) GetComponentWithRelations(ctx context.Context, code string) (*ComponentView, error) {
	rows, err := r.db.ExecuteQuery(ctx, `
		MATCH (c:Component)
		WHERE toLower(c.code) = toLower($code)
		OPTIONAL MATCH (c)-[:USES_MATERIAL]->(m:Material)
		OPTIONAL MATCH (c)-[:HAS_DIMENSION]->(dim:Dimension)
		OPTIONAL MATCH (c)-[:REFERS_TO]->(s:Specification)
		OPTIONAL MATCH (c)-[:CONNECTED_TO]-(other:Component)
		OPTIONAL MATCH (c)-[:BELONGS_TO]->(d:Document)
		RETURN c AS component,
		       collect(DISTINCT m) AS materials,
		       collect(DISTINCT dim) AS dimensions,
		       collect(DISTINCT s) AS specifications,
		       collect(DISTINCT other) AS connected,
		       collect(DISTINCT d.doc_id) AS documents
		LIMIT 1`,
		map[string]any{"code": code})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	view := &ComponentView{
		Component:      entityFrom(types.EntityComponent, nodeProps(row["component"])),
		Materials:      entitiesFrom(types.EntityMaterial, row["materials"]),
		Dimensions:     entitiesFrom(types.EntityDimension, row["dimensions"]),
		Specifications: entitiesFrom(types.EntitySpecification, row["specifications"]),
		Connected:      entitiesFrom(types.EntityComponent, row["connected"]),
	}
	if docs, ok := row["documents"].([]any); ok {
		for _, d := range docs {
			if id, ok := d.(string); ok && id != "" {
				view.Documents = append(view.Documents, id)
			}
		}
	}
	return view, nil
}

// FindEntities matches nodes of one kind whose field contains the value,
// case-insensitive. docID, when set, restricts to entities of that document.
func (r *Repository) FindEntities(ctx context.Context, kind types.EntityKind, field, value, docID string) ([]types.GraphEntity, error) {
	label, ok := nodeLabels[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind: %s", kind)
	}
	if _, ok := searchableFields[field]; !ok {
		return nil, fmt.Errorf("field %q is not searchable", field)
	}

	cypher := fmt.Sprintf(`
		MATCH (n:%s)
		WHERE toLower(toString(n.%s)) CONTAINS toLower($value)`, label, field)
	params := map[string]any{"value": value}
	if docID != "" {
		cypher += `
		  AND EXISTS { MATCH (n)-[:BELONGS_TO]->(:Document {doc_id: $doc_id}) }`
		params["doc_id"] = docID
	}
	cypher += `
		RETURN n ORDER BY n.key LIMIT 50`

	rows, err := r.db.ExecuteQuery(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	entities := make([]types.GraphEntity, 0, len(rows))
	for _, row := range rows {
		entities = append(entities, entityFrom(kind, nodeProps(row["n"])))
	}
	return entities, nil
}

// RelatedDocuments ranks documents by how many of the given entity keys they
// own.
func (r *Repository) RelatedDocuments(ctx context.Context, entityKeys []string) ([]RelatedDocument, error) {
	if len(entityKeys) == 0 {
		return nil, nil
	}
	rows, err := r.db.ExecuteQuery(ctx, `
		MATCH (n)-[:BELONGS_TO]->(d:Document)
		WHERE n.key IN $keys
		RETURN d.doc_id AS doc_id, d.name AS name, count(n) AS incidence
		ORDER BY incidence DESC, doc_id ASC`,
		map[string]any{"keys": entityKeys})
	if err != nil {
		return nil, err
	}
	docs := make([]RelatedDocument, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, RelatedDocument{
			DocID:     stringProp(row, "doc_id"),
			Name:      stringProp(row, "name"),
			Incidence: int(intProp(row, "incidence")),
		})
	}
	return docs, nil
}

// DeleteDocumentAndRelations removes the document node and every entity whose
// only owner it was. Entities also owned by other documents survive.
func (r *Repository) DeleteDocumentAndRelations(ctx context.Context, docID string) (Counters, error) {
	orphans, err := r.db.ExecuteWrite(ctx, `
		MATCH (n)-[:BELONGS_TO]->(d:Document {doc_id: $doc_id})
		WHERE NOT EXISTS {
			MATCH (n)-[:BELONGS_TO]->(other:Document) WHERE other.doc_id <> $doc_id
		}
		DETACH DELETE n`,
		map[string]any{"doc_id": docID})
	if err != nil {
		return Counters{}, fmt.Errorf("failed to delete entities of %s: %w", docID, err)
	}

	doc, err := r.db.ExecuteWrite(ctx, `
		MATCH (d:Document {doc_id: $doc_id})
		DETACH DELETE d`,
		map[string]any{"doc_id": docID})
	if err != nil {
		return Counters{}, fmt.Errorf("failed to delete document node %s: %w", docID, err)
	}

	total := orphans.add(doc)
	r.logger.Info("deleted document graph",
		"doc_id", docID,
		"nodes_deleted", total.NodesDeleted,
		"relationships_deleted", total.RelationshipsDeleted,
	)
	return total, nil
}

// entityProps flattens the variant fields that are set.
func entityProps(e *types.GraphEntity) map[string]any {
	props := map[string]any{}
	set := func(k, v string) {
		if v != "" {
			props[k] = v
		}
	}
	set("code", e.Code)
	set("component_type", string(e.ComponentType))
	set("material_type", e.MaterialType)
	set("grade", e.Grade)
	set("dim_type", e.DimType)
	set("value", e.Value)
	set("unit", e.Unit)
	set("doc_id", e.DocID)
	set("name", e.Name)
	set("source", e.Source)
	for k, v := range e.Props {
		set(k, v)
	}
	return props
}

func entityFrom(kind types.EntityKind, props map[string]any) types.GraphEntity {
	get := func(k string) string {
		if v, ok := props[k].(string); ok {
			return v
		}
		return ""
	}
	return types.GraphEntity{
		Kind:          kind,
		Code:          get("code"),
		ComponentType: types.ComponentType(get("component_type")),
		MaterialType:  get("material_type"),
		Grade:         get("grade"),
		DimType:       get("dim_type"),
		Value:         get("value"),
		Unit:          get("unit"),
		DocID:         get("doc_id"),
		Name:          get("name"),
		Source:        get("source"),
	}
}

func entitiesFrom(kind types.EntityKind, raw any) []types.GraphEntity {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	entities := make([]types.GraphEntity, 0, len(items))
	for _, item := range items {
		props := nodeProps(item)
		if len(props) == 0 {
			continue
		}
		entities = append(entities, entityFrom(kind, props))
	}
	return entities
}

// nodeProps extracts the property map from a returned node value. The driver
// hands back dbtype.Node; fakes in tests hand back plain maps.
func nodeProps(v any) map[string]any {
	switch n := v.(type) {
	case map[string]any:
		return n
	case interface{ GetProperties() map[string]any }:
		return n.GetProperties()
	default:
		return nil
	}
}

func stringProp(row map[string]any, key string) string {
	if v, ok := row[key].(string); ok {
		return v
	}
	return ""
}

func intProp(row map[string]any, key string) int64 {
	switch v := row[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
