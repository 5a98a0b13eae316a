package graph

import (
	"context"
	"fmt"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildrag/internal/config"
	"buildrag/internal/graphstore"
	"buildrag/pkg/types"
)

type fakeRepo struct {
	entities map[string][]types.GraphEntity // kind:field:value -> entities
	views    map[string]*graphstore.ComponentView
	down     bool
}

func (f *fakeRepo) FindEntities(_ context.Context, kind types.EntityKind, field, value, _ string) ([]types.GraphEntity, error) {
	if f.down {
		return nil, fmt.Errorf("graph store unreachable")
	}
	return f.entities[string(kind)+":"+field+":"+value], nil
}

func (f *fakeRepo) GetComponentWithRelations(_ context.Context, code string) (*graphstore.ComponentView, error) {
	if f.down {
		return nil, fmt.Errorf("graph store unreachable")
	}
	return f.views[code], nil
}

func (f *fakeRepo) RelatedDocuments(_ context.Context, _ []string) ([]graphstore.RelatedDocument, error) {
	if f.down {
		return nil, fmt.Errorf("graph store unreachable")
	}
	return []graphstore.RelatedDocument{{DocID: "doc-1", Incidence: 2}}, nil
}

func testConfig() *config.RetrievalConfig {
	return &config.RetrievalConfig{MaxEntities: 5, RelationDepth: 2, ContextBudget: 3000}
}

func kl1View() *graphstore.ComponentView {
	return &graphstore.ComponentView{
		Component: types.GraphEntity{Kind: types.EntityComponent, Code: "KL-1", ComponentType: types.ComponentBeam},
		Materials: []types.GraphEntity{
			{Kind: types.EntityMaterial, Grade: "C30", MaterialType: "concrete"},
		},
		Dimensions: []types.GraphEntity{
			{Kind: types.EntityDimension, DimType: "section", Value: "300x500", Unit: "mm"},
		},
		Specifications: []types.GraphEntity{
			{Kind: types.EntitySpecification, Code: "GB50010-2010"},
		},
	}
}

func TestLinkEntitiesPatternsBeforeKeywords(t *testing.T) {
	probes := linkEntities("KL-1梁使用C30混凝土", 5)
	require.NotEmpty(t, probes)

	assert.Equal(t, "KL-1", probes[0].value)
	assert.Equal(t, scoreExact, probes[0].score)
	assert.Equal(t, "C30", probes[1].value)

	var keywords []string
	for _, p := range probes {
		if p.score == scoreKeyword {
			keywords = append(keywords, p.value)
		}
	}
	assert.Contains(t, keywords, "beam")
	assert.Contains(t, keywords, "concrete")
}

func TestLinkEntitiesCapAndDedupe(t *testing.T) {
	probes := linkEntities("KL-1 KL-1 KL-2 KL-3 KL-4 KL-5 KL-6", 5)
	assert.Len(t, probes, 5)

	seen := map[string]bool{}
	for _, p := range probes {
		key := p.field + ":" + p.value
		assert.False(t, seen[key], "duplicate probe %s", key)
		seen[key] = true
	}
}

func TestLinkEntitiesZeroCap(t *testing.T) {
	assert.Nil(t, linkEntities("KL-1", 0))
}

func TestSearchExpandsComponent(t *testing.T) {
	repo := &fakeRepo{
		entities: map[string][]types.GraphEntity{
			"Component:code:KL-1": {{Kind: types.EntityComponent, Code: "KL-1", ComponentType: types.ComponentBeam}},
		},
		views: map[string]*graphstore.ComponentView{"KL-1": kl1View()},
	}
	r := New(repo, testConfig())

	results := r.Search(context.Background(), "KL-1的配筋要求", 5, "")
	require.Len(t, results, 1)

	got := results[0]
	assert.Equal(t, scoreExact, got.Score)
	assert.Equal(t, types.SourceGraph, got.Source)
	assert.Equal(t, "KL-1", got.Entity.Code)
	assert.Len(t, got.Relations, 3)
	assert.NotEmpty(t, got.RelatedEntities)

	assert.Contains(t, got.Text, "构件 KL-1 为梁")
	assert.Contains(t, got.Text, "C30")
	assert.Contains(t, got.Text, "300x500")
	assert.Contains(t, got.Text, "GB50010-2010")
}

func TestSearchKeywordPrecision(t *testing.T) {
	repo := &fakeRepo{
		entities: map[string][]types.GraphEntity{
			"Material:material_type:concrete": {{Kind: types.EntityMaterial, Grade: "C30", MaterialType: "concrete"}},
		},
	}
	r := New(repo, testConfig())

	results := r.Search(context.Background(), "混凝土强度要求", 5, "")
	require.Len(t, results, 1)
	assert.Equal(t, scoreKeyword, results[0].Score)
	assert.Contains(t, results[0].Text, "C30")
}

func TestSearchGraphDownReturnsEmptyNotError(t *testing.T) {
	r := New(&fakeRepo{down: true}, testConfig())
	assert.Empty(t, r.Search(context.Background(), "KL-1混凝土", 5, ""))
}

func TestSearchTopKZero(t *testing.T) {
	r := New(&fakeRepo{}, testConfig())
	assert.Nil(t, r.Search(context.Background(), "KL-1", 0, ""))
}

func TestSearchNoLinkableEntities(t *testing.T) {
	r := New(&fakeRepo{}, testConfig())
	assert.Empty(t, r.Search(context.Background(), "今天天气如何", 5, ""))
}

func TestSearchRespectsTopK(t *testing.T) {
	repo := &fakeRepo{
		entities: map[string][]types.GraphEntity{
			"Component:code:KL-1": {
				{Kind: types.EntityComponent, Code: "KL-1", ComponentType: types.ComponentBeam},
				{Kind: types.EntityComponent, Code: "KL-1a", ComponentType: types.ComponentBeam},
			},
		},
	}
	r := New(repo, testConfig())
	results := r.Search(context.Background(), "KL-1", 1, "")
	assert.Len(t, results, 1)
}

func TestContextBudgetTruncation(t *testing.T) {
	cfg := testConfig()
	cfg.ContextBudget = 10

	repo := &fakeRepo{
		entities: map[string][]types.GraphEntity{
			"Component:code:KL-1": {{Kind: types.EntityComponent, Code: "KL-1", ComponentType: types.ComponentBeam}},
		},
		views: map[string]*graphstore.ComponentView{"KL-1": kl1View()},
	}
	r := New(repo, cfg)

	results := r.Search(context.Background(), "KL-1", 5, "")
	require.Len(t, results, 1)
	assert.LessOrEqual(t, utf8.RuneCountInString(results[0].Text), 10)
}

func TestRenderEntityTemplates(t *testing.T) {
	material := types.GraphEntity{Kind: types.EntityMaterial, Grade: "HRB400", MaterialType: "rebar"}
	assert.Equal(t, "材料 HRB400 为钢筋。", renderEntity(&material))

	spec := types.GraphEntity{Kind: types.EntitySpecification, Code: "JGJ3-2010"}
	assert.Equal(t, "规范 JGJ3-2010 为设计依据。", renderEntity(&spec))

	dim := types.GraphEntity{Kind: types.EntityDimension, DimType: "thickness", Value: "120", Unit: "mm"}
	assert.Equal(t, "厚度尺寸为 120mm。", renderEntity(&dim))
}
