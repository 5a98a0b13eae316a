// Package graph is the knowledge-graph retrieval channel: it links query
// text to graph entities, expands their relations and renders a natural
// language context for each hit.
package graph

import (
	"strings"

	"buildrag/internal/drawing"
	"buildrag/pkg/types"
)

// Match precision scores by how the probe was derived.
const (
	scoreExact   = 0.9
	scoreKeyword = 0.7
)

// probe is one candidate graph lookup derived from the query.
type probe struct {
	kind  types.EntityKind
	field string
	value string
	score float64
}

// keywordProbes maps domain vocabulary to lookups when the query carries no
// extractable code.
var keywordProbes = []struct {
	word  string
	probe probe
}{
	{"混凝土", probe{types.EntityMaterial, "material_type", drawing.MaterialConcrete, scoreKeyword}},
	{"钢筋", probe{types.EntityMaterial, "material_type", drawing.MaterialRebar, scoreKeyword}},
	{"钢材", probe{types.EntityMaterial, "material_type", drawing.MaterialSteel, scoreKeyword}},
	{"型钢", probe{types.EntityMaterial, "material_type", drawing.MaterialSteel, scoreKeyword}},
	{"梁", probe{types.EntityComponent, "component_type", string(types.ComponentBeam), scoreKeyword}},
	{"柱", probe{types.EntityComponent, "component_type", string(types.ComponentColumn), scoreKeyword}},
	{"楼板", probe{types.EntityComponent, "component_type", string(types.ComponentSlab), scoreKeyword}},
	{"剪力墙", probe{types.EntityComponent, "component_type", string(types.ComponentWall), scoreKeyword}},
	{"基础", probe{types.EntityComponent, "component_type", string(types.ComponentFoundation), scoreKeyword}},
}

// linkEntities derives lookup probes from the query: exact codes via the
// drawing pattern set first, then vocabulary keywords. Deduped by
// (kind, field, value) and capped at maxEntities.
func linkEntities(query string, maxEntities int) []probe {
	if maxEntities <= 0 {
		return nil
	}

	var probes []probe
	seen := map[string]struct{}{}
	add := func(p probe) {
		key := string(p.kind) + ":" + p.field + ":" + strings.ToLower(p.value)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		probes = append(probes, p)
	}

	for _, e := range drawing.ExtractEntities(query, "query") {
		switch e.Kind {
		case types.EntityComponent:
			add(probe{types.EntityComponent, "code", e.Code, scoreExact})
		case types.EntityMaterial:
			add(probe{types.EntityMaterial, "grade", e.Grade, scoreExact})
		case types.EntitySpecification:
			add(probe{types.EntitySpecification, "code", e.Code, scoreExact})
		case types.EntityDimension:
			add(probe{types.EntityDimension, "value", e.Value, scoreExact})
		}
	}

	for _, kw := range keywordProbes {
		if strings.Contains(query, kw.word) {
			add(kw.probe)
		}
	}

	if len(probes) > maxEntities {
		probes = probes[:maxEntities]
	}
	return probes
}
