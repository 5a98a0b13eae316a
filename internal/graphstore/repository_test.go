package graphstore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildrag/pkg/types"
)

// fakeDB records statements and serves canned query rows.
type fakeDB struct {
	rows   []map[string]any
	writes []string
	params []map[string]any
}

func (f *fakeDB) ExecuteQuery(_ context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	f.writes = append(f.writes, cypher)
	f.params = append(f.params, params)
	return f.rows, nil
}

func (f *fakeDB) ExecuteWrite(_ context.Context, cypher string, params map[string]any) (Counters, error) {
	f.writes = append(f.writes, cypher)
	f.params = append(f.params, params)
	return Counters{NodesCreated: 1}, nil
}

func TestCreateComponentMergesNodeAndOwnership(t *testing.T) {
	db := &fakeDB{}
	repo := newRepository(db)

	entity := &types.GraphEntity{
		Kind:          types.EntityComponent,
		Code:          "KL-1",
		ComponentType: types.ComponentBeam,
		Source:        "regex",
	}
	require.NoError(t, repo.CreateComponent(context.Background(), "doc-1", entity))

	require.Len(t, db.writes, 1)
	assert.Contains(t, db.writes[0], "MERGE (n:Component {key: $key})")
	assert.Contains(t, db.writes[0], "BELONGS_TO")
	assert.Equal(t, "Component:KL-1", db.params[0]["key"])

	props := db.params[0]["props"].(map[string]any)
	assert.Equal(t, "KL-1", props["code"])
	assert.Equal(t, "beam", props["component_type"])
}

func TestUpsertRejectsKindMismatch(t *testing.T) {
	repo := newRepository(&fakeDB{})
	entity := &types.GraphEntity{Kind: types.EntityMaterial, Grade: "C30"}
	assert.Error(t, repo.CreateComponent(context.Background(), "doc-1", entity))
}

func TestCreateRelationValidatesTypes(t *testing.T) {
	db := &fakeDB{}
	repo := newRepository(db)

	rel := &types.GraphRelation{
		Type:     types.RelationUsesMaterial,
		FromKind: types.EntityComponent,
		ToKind:   types.EntityMaterial,
		FromKey:  "Component:KL-1",
		ToKey:    "Material:C30",
	}
	require.NoError(t, repo.CreateRelation(context.Background(), rel))
	assert.Contains(t, db.writes[0], "[r:USES_MATERIAL]")

	bad := &types.GraphRelation{Type: "EXPLODES", FromKind: types.EntityComponent, ToKind: types.EntityMaterial}
	assert.Error(t, repo.CreateRelation(context.Background(), bad))
}

func TestGetComponentWithRelationsAssemblesView(t *testing.T) {
	db := &fakeDB{rows: []map[string]any{{
		"component":      map[string]any{"code": "KZ-1", "component_type": "column"},
		"materials":      []any{map[string]any{"grade": "C40", "material_type": "concrete"}},
		"dimensions":     []any{map[string]any{"dim_type": "section", "value": "500x500", "unit": "mm"}},
		"specifications": []any{map[string]any{"code": "GB50010-2010"}},
		"connected":      []any{map[string]any{"code": "KL-2", "component_type": "beam"}},
		"documents":      []any{"doc-1", "doc-2"},
	}}}
	repo := newRepository(db)

	view, err := repo.GetComponentWithRelations(context.Background(), "kz-1")
	require.NoError(t, err)
	require.NotNil(t, view)

	assert.Equal(t, "KZ-1", view.Component.Code)
	assert.Equal(t, types.ComponentColumn, view.Component.ComponentType)
	require.Len(t, view.Materials, 1)
	assert.Equal(t, "C40", view.Materials[0].Grade)
	require.Len(t, view.Dimensions, 1)
	assert.Equal(t, "500x500", view.Dimensions[0].Value)
	require.Len(t, view.Specifications, 1)
	assert.Equal(t, "GB50010-2010", view.Specifications[0].Code)
	require.Len(t, view.Connected, 1)
	assert.Equal(t, "KL-2", view.Connected[0].Code)
	assert.Equal(t, []string{"doc-1", "doc-2"}, view.Documents)
}

func TestGetComponentMissingReturnsNil(t *testing.T) {
	repo := newRepository(&fakeDB{})
	view, err := repo.GetComponentWithRelations(context.Background(), "KL-404")
	require.NoError(t, err)
	assert.Nil(t, view)
}

func TestFindEntitiesScopesToDocument(t *testing.T) {
	db := &fakeDB{rows: []map[string]any{
		{"n": map[string]any{"grade": "C30", "material_type": "concrete"}},
	}}
	repo := newRepository(db)

	entities, err := repo.FindEntities(context.Background(), types.EntityMaterial, "grade", "c30", "doc-1")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "C30", entities[0].Grade)

	assert.Contains(t, db.writes[0], "MATCH (n:Material)")
	assert.Contains(t, db.writes[0], "doc_id: $doc_id")
	assert.Equal(t, "doc-1", db.params[0]["doc_id"])
}

func TestFindEntitiesRejectsUnknownField(t *testing.T) {
	repo := newRepository(&fakeDB{})
	_, err := repo.FindEntities(context.Background(), types.EntityComponent, "key) DETACH DELETE (n", "x", "")
	assert.Error(t, err)
}

func TestRelatedDocumentsEmptyKeysShortCircuits(t *testing.T) {
	db := &fakeDB{}
	repo := newRepository(db)
	docs, err := repo.RelatedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, docs)
	assert.Empty(t, db.writes)
}

func TestRelatedDocumentsRanksByIncidence(t *testing.T) {
	db := &fakeDB{rows: []map[string]any{
		{"doc_id": "doc-2", "name": "tower drawings", "incidence": int64(5)},
		{"doc_id": "doc-1", "name": "podium drawings", "incidence": int64(2)},
	}}
	repo := newRepository(db)

	docs, err := repo.RelatedDocuments(context.Background(), []string{"Component:KL-1", "Material:C30"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc-2", docs[0].DocID)
	assert.Equal(t, 5, docs[0].Incidence)
}

func TestDeleteDocumentRunsOrphanSweepFirst(t *testing.T) {
	db := &fakeDB{}
	repo := newRepository(db)

	_, err := repo.DeleteDocumentAndRelations(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, db.writes, 2)
	// First statement removes solely-owned entities, second the document.
	assert.Contains(t, db.writes[0], "BELONGS_TO")
	assert.True(t, strings.Contains(db.writes[0], "NOT EXISTS"))
	assert.Contains(t, db.writes[1], "Document {doc_id: $doc_id}")
}

func TestEntityPropsRoundTrip(t *testing.T) {
	in := types.GraphEntity{
		Kind:    types.EntityDimension,
		DimType: "thickness",
		Value:   "120",
		Unit:    "mm",
		Source:  "table",
	}
	out := entityFrom(types.EntityDimension, entityProps(&in))
	assert.Equal(t, in, out)
}
