package drawing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildrag/pkg/types"
)

func byKind(entities []types.GraphEntity, kind types.EntityKind) []types.GraphEntity {
	var out []types.GraphEntity
	for _, e := range entities {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func TestExtractComponentCodes(t *testing.T) {
	entities := ExtractEntities("框架梁KL-1与KZ-2相连, 楼板LB-3, 剪力墙Q-4", "text")
	components := byKind(entities, types.EntityComponent)
	require.Len(t, components, 4)

	got := map[string]types.ComponentType{}
	for _, c := range components {
		got[c.Code] = c.ComponentType
	}
	assert.Equal(t, types.ComponentBeam, got["KL-1"])
	assert.Equal(t, types.ComponentColumn, got["KZ-2"])
	assert.Equal(t, types.ComponentSlab, got["LB-3"])
	assert.Equal(t, types.ComponentWall, got["Q-4"])
}

func TestSteelGradeIsNotAWall(t *testing.T) {
	entities := ExtractEntities("钢梁采用Q355B, Q235", "text")
	assert.Empty(t, byKind(entities, types.EntityComponent))

	materials := byKind(entities, types.EntityMaterial)
	require.Len(t, materials, 2)
	for _, m := range materials {
		assert.Equal(t, MaterialSteel, m.MaterialType)
	}
}

func TestExtractMaterialGrades(t *testing.T) {
	entities := ExtractEntities("C30混凝土, HRB400E钢筋", "text")
	materials := byKind(entities, types.EntityMaterial)
	require.Len(t, materials, 2)
	assert.Equal(t, "C30", materials[0].Grade)
	assert.Equal(t, MaterialConcrete, materials[0].MaterialType)
	assert.Equal(t, "HRB400E", materials[1].Grade)
	assert.Equal(t, MaterialRebar, materials[1].MaterialType)
}

func TestExtractSpecCodes(t *testing.T) {
	entities := ExtractEntities("依据GB 50010-2010及JGJ 3-2010设计", "text")
	specs := byKind(entities, types.EntitySpecification)
	require.Len(t, specs, 2)
	// Internal whitespace collapses so variants collide on one key.
	assert.Equal(t, "GB50010-2010", specs[0].Code)
	assert.Equal(t, "JGJ3-2010", specs[1].Code)
}

func TestExtractDimensions(t *testing.T) {
	entities := ExtractEntities("梁截面300x500, 板厚120, 箍筋@200", "text")
	dims := byKind(entities, types.EntityDimension)
	require.Len(t, dims, 3)

	got := map[string]string{}
	for _, d := range dims {
		got[d.DimType] = d.Value
	}
	assert.Equal(t, "300x500", got[DimSection])
	assert.Equal(t, "120", got[DimThickness])
	assert.Equal(t, "200", got[DimSpacing])
}

func TestExtractFloorTagsComponents(t *testing.T) {
	entities := ExtractEntities("3层 KL-1 KZ-1", "text")
	components := byKind(entities, types.EntityComponent)
	require.Len(t, components, 2)
	for _, c := range components {
		assert.Equal(t, "3", c.Props["floor"])
	}
}

func TestExtractEmptyText(t *testing.T) {
	assert.Empty(t, ExtractEntities("", "text"))
	assert.Empty(t, ExtractEntities("   ", "text"))
}

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	entities := []types.GraphEntity{
		{Kind: types.EntityComponent, Code: "KL-1", ComponentType: types.ComponentBeam, Source: "text"},
		{Kind: types.EntityMaterial, Grade: "C30", MaterialType: MaterialConcrete},
		{Kind: types.EntityComponent, Code: "KL-1", ComponentType: types.ComponentBeam, Source: "table"},
		{Kind: types.EntityDimension, DimType: DimSection, Value: "300x500"},
		{Kind: types.EntityDimension, DimType: DimSection, Value: "300x500"},
	}
	deduped := Dedupe(entities)
	require.Len(t, deduped, 3)
	assert.Equal(t, "text", deduped[0].Source)
}
