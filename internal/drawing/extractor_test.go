package drawing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildrag/internal/config"
	"buildrag/pkg/types"
)

// fakeGraph records writes; individual methods can be failed selectively.
type fakeGraph struct {
	docs       []string
	entities   []types.GraphEntity
	relations  []types.GraphRelation
	failDoc    bool
	failEdge   map[types.RelationType]bool
	failEntity bool
}

func (f *fakeGraph) CreateDocumentNode(_ context.Context, doc *types.Document) error {
	if f.failDoc {
		return fmt.Errorf("graph down")
	}
	f.docs = append(f.docs, doc.ID)
	return nil
}

func (f *fakeGraph) record(e *types.GraphEntity) error {
	if f.failEntity {
		return fmt.Errorf("node write refused")
	}
	f.entities = append(f.entities, *e)
	return nil
}

func (f *fakeGraph) CreateComponent(_ context.Context, _ string, e *types.GraphEntity) error {
	return f.record(e)
}
func (f *fakeGraph) CreateMaterial(_ context.Context, _ string, e *types.GraphEntity) error {
	return f.record(e)
}
func (f *fakeGraph) CreateSpecification(_ context.Context, _ string, e *types.GraphEntity) error {
	return f.record(e)
}
func (f *fakeGraph) CreateDimension(_ context.Context, _ string, e *types.GraphEntity) error {
	return f.record(e)
}

func (f *fakeGraph) CreateRelation(_ context.Context, rel *types.GraphRelation) error {
	if f.failEdge[rel.Type] {
		return fmt.Errorf("edge write refused")
	}
	f.relations = append(f.relations, *rel)
	return nil
}

func testBundle(text string) *Bundle {
	doc := types.NewDocument("结构施工图", types.DocTypeDrawing, "/drawings/t1.pdf")
	return &Bundle{Document: doc, Pages: []string{text}}
}

func relationSet(rels []types.GraphRelation) map[string]bool {
	set := map[string]bool{}
	for _, r := range rels {
		set[string(r.Type)+" "+r.FromKey+" -> "+r.ToKey] = true
	}
	return set
}

func TestProcessExtractsAndSyncsKnowledge(t *testing.T) {
	graph := &fakeGraph{}
	ex := New(graph, nil, &config.DrawingConfig{})

	bundle := testBundle("KL-1 C30 HRB400 300x500 GB50010-2010")
	record, err := ex.Process(context.Background(), bundle)
	require.NoError(t, err)

	assert.Equal(t, types.DrawingCompleted, record.Status)
	assert.Equal(t, 100, record.Progress)
	assert.True(t, record.GraphSynced)
	assert.NotNil(t, record.FinishedAt)
	assert.Equal(t, 5, record.EntityCount)

	require.Len(t, graph.docs, 1)
	assert.Equal(t, bundle.Document.ID, graph.docs[0])

	kinds := map[types.EntityKind]int{}
	for _, e := range graph.entities {
		kinds[e.Kind]++
	}
	assert.Equal(t, 1, kinds[types.EntityComponent])
	assert.Equal(t, 2, kinds[types.EntityMaterial])
	assert.Equal(t, 1, kinds[types.EntityDimension])
	assert.Equal(t, 1, kinds[types.EntitySpecification])

	rels := relationSet(graph.relations)
	docKey := "Document:" + bundle.Document.ID
	assert.True(t, rels["USES_MATERIAL Component:KL-1 -> Material:C30"])
	assert.True(t, rels["USES_MATERIAL Component:KL-1 -> Material:HRB400"])
	assert.True(t, rels["HAS_DIMENSION Component:KL-1 -> Dimension:section:300x500"])
	assert.True(t, rels["REFERS_TO "+docKey+" -> Specification:GB50010-2010"])
	assert.Equal(t, 4, record.RelationCount)
}

func TestProcessProgressIsMonotone(t *testing.T) {
	graph := &fakeGraph{}
	ex := New(graph, nil, &config.DrawingConfig{})

	record, err := ex.Process(context.Background(), testBundle("KZ-1 C40"))
	require.NoError(t, err)

	last := 0
	require.NotEmpty(t, record.Steps)
	for range record.Steps {
		assert.GreaterOrEqual(t, record.Progress, last)
	}
	assert.Equal(t, 100, record.Progress)
}

func TestProcessEmptyTextCompletesWithNothing(t *testing.T) {
	graph := &fakeGraph{}
	ex := New(graph, nil, &config.DrawingConfig{})

	record, err := ex.Process(context.Background(), testBundle("本图无结构信息"))
	require.NoError(t, err)
	assert.Equal(t, types.DrawingCompleted, record.Status)
	assert.Equal(t, 0, record.EntityCount)
	assert.Equal(t, 0, record.RelationCount)
}

func TestProcessGraphDownEndsPartial(t *testing.T) {
	graph := &fakeGraph{failDoc: true}
	ex := New(graph, nil, &config.DrawingConfig{})

	record, err := ex.Process(context.Background(), testBundle("KL-1 C30"))
	require.NoError(t, err)
	assert.Equal(t, types.DrawingPartial, record.Status)
	assert.False(t, record.GraphSynced)
	// Extraction still happened.
	assert.Equal(t, 2, record.EntityCount)
}

func TestProcessSwallowsSingleEdgeFailure(t *testing.T) {
	graph := &fakeGraph{failEdge: map[types.RelationType]bool{types.RelationHasDimension: true}}
	ex := New(graph, nil, &config.DrawingConfig{})

	record, err := ex.Process(context.Background(), testBundle("KL-1 C30 300x500"))
	require.NoError(t, err)
	// A bad edge degrades the count, not the run.
	assert.Equal(t, types.DrawingCompleted, record.Status)
	assert.True(t, record.GraphSynced)
	assert.Equal(t, 1, record.RelationCount)
	assert.True(t, relationSet(graph.relations)["USES_MATERIAL Component:KL-1 -> Material:C30"])
}

func TestProcessTablePassTagsSource(t *testing.T) {
	graph := &fakeGraph{}
	ex := New(graph, nil, &config.DrawingConfig{})

	bundle := testBundle("梁表见下")
	bundle.Tables = []Table{{
		Caption: "梁配筋表",
		Rows:    [][]string{{"KL-2", "C35", "300x600"}},
	}}
	record, err := ex.Process(context.Background(), bundle)
	require.NoError(t, err)
	assert.Equal(t, 3, record.EntityCount)

	for _, e := range graph.entities {
		assert.Equal(t, "table", e.Source)
	}
}

// stubEnricher returns fixed entities or an error.
type stubEnricher struct {
	entities []types.GraphEntity
	err      error
}

func (s *stubEnricher) Enrich(_ context.Context, _ string) ([]types.GraphEntity, error) {
	return s.entities, s.err
}

func TestProcessEnrichmentMergesEntities(t *testing.T) {
	graph := &fakeGraph{}
	enricher := &stubEnricher{entities: []types.GraphEntity{
		{Kind: types.EntityComponent, Code: "WKL-9", ComponentType: types.ComponentBeam, Source: "llm"},
	}}
	ex := New(graph, enricher, &config.DrawingConfig{LLMEnrichment: true})

	record, err := ex.Process(context.Background(), testBundle("KZ-1"))
	require.NoError(t, err)
	assert.Equal(t, types.DrawingCompleted, record.Status)
	assert.Equal(t, 2, record.EntityCount)
}

func TestProcessEnrichmentFailureDegrades(t *testing.T) {
	graph := &fakeGraph{}
	enricher := &stubEnricher{err: fmt.Errorf("model unreachable")}
	ex := New(graph, enricher, &config.DrawingConfig{LLMEnrichment: true})

	record, err := ex.Process(context.Background(), testBundle("KZ-1 C40"))
	require.NoError(t, err)
	// Rule output survives; the run is partial because one step failed.
	assert.Equal(t, types.DrawingPartial, record.Status)
	assert.Equal(t, 2, record.EntityCount)
	assert.True(t, record.GraphSynced)
}

func TestParseEnrichmentStrict(t *testing.T) {
	good := `[{"type":"material","grade":"C50","material_type":"concrete"}]`
	entities, err := parseEnrichment(good)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "C50", entities[0].Grade)
	assert.Equal(t, "llm", entities[0].Source)

	fenced := "```json\n" + good + "\n```"
	entities, err = parseEnrichment(fenced)
	require.NoError(t, err)
	assert.Len(t, entities, 1)

	for _, bad := range []string{
		"抱歉，我无法处理。",
		`{"type":"material"}`,
		`[{"type":"material","grade":"C50","surprise":"x"}]`,
		`[{"type":"alien","code":"X"}]`,
		`[{"type":"dimension","value":"300"}]`,
	} {
		_, err := parseEnrichment(bad)
		assert.Error(t, err, "input %q", bad)
	}
}
