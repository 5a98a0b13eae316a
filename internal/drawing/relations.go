package drawing

import (
	"buildrag/pkg/types"
)

// componentMaterials is the static rule table of material types a component
// may plausibly use.
var componentMaterials = map[types.ComponentType]map[string]bool{
	types.ComponentBeam:       {MaterialConcrete: true, MaterialRebar: true, MaterialSteel: true},
	types.ComponentColumn:     {MaterialConcrete: true, MaterialRebar: true, MaterialSteel: true},
	types.ComponentSlab:       {MaterialConcrete: true, MaterialRebar: true},
	types.ComponentWall:       {MaterialConcrete: true, MaterialRebar: true},
	types.ComponentFoundation: {MaterialConcrete: true, MaterialRebar: true},
}

// connectedPairs lists the component type pairs that form CONNECTED_TO edges
// when both sit on the same floor.
var connectedPairs = []struct{ a, b types.ComponentType }{
	{types.ComponentBeam, types.ComponentColumn},
	{types.ComponentSlab, types.ComponentBeam},
}

// InferRelations derives edges from the deduplicated entity set. Ownership
// edges to the document are created during node upsert and are not repeated
// here.
func InferRelations(doc *types.Document, entities []types.GraphEntity) []types.GraphRelation {
	var components, materials, dimensions, specs []types.GraphEntity
	for _, e := range entities {
		switch e.Kind {
		case types.EntityComponent:
			components = append(components, e)
		case types.EntityMaterial:
			materials = append(materials, e)
		case types.EntityDimension:
			dimensions = append(dimensions, e)
		case types.EntitySpecification:
			specs = append(specs, e)
		}
	}

	var relations []types.GraphRelation

	for _, c := range components {
		allowed := componentMaterials[c.ComponentType]
		for _, m := range materials {
			if !allowed[m.MaterialType] {
				continue
			}
			relations = append(relations, edge(types.RelationUsesMaterial, &c, &m))
		}
		// Dimensions co-occur with the component in the same document.
		for _, d := range dimensions {
			relations = append(relations, edge(types.RelationHasDimension, &c, &d))
		}
	}

	docEntity := types.GraphEntity{Kind: types.EntityDocument, DocID: doc.ID, Name: doc.Name}
	for _, s := range specs {
		relations = append(relations, edge(types.RelationRefersTo, &docEntity, &s))
	}

	for i := range components {
		for j := range components {
			if i == j {
				continue
			}
			if sameFloorPair(&components[i], &components[j]) {
				relations = append(relations, edge(types.RelationConnectedTo, &components[i], &components[j]))
			}
		}
	}

	return relations
}

func edge(relType types.RelationType, from, to *types.GraphEntity) types.GraphRelation {
	return types.GraphRelation{
		Type:     relType,
		FromKey:  from.Key(),
		ToKey:    to.Key(),
		FromKind: from.Kind,
		ToKind:   to.Kind,
	}
}

// sameFloorPair reports whether a directed CONNECTED_TO edge a→b applies:
// both carry a floor tag, the floors match, and (a.type, b.type) is a listed
// pair.
func sameFloorPair(a, b *types.GraphEntity) bool {
	floorA, floorB := a.Props["floor"], b.Props["floor"]
	if floorA == "" || floorA != floorB {
		return false
	}
	for _, p := range connectedPairs {
		if a.ComponentType == p.a && b.ComponentType == p.b {
			return true
		}
	}
	return false
}
