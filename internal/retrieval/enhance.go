package retrieval

import (
	"sort"
	"strings"

	"buildrag/pkg/types"
)

// enhance attaches graph context to fused candidates. A candidate gets the
// context of any graph entity its text mentions, directly or through the
// entity's related entities. The first candidate additionally carries a
// global summary of the top entities by type.
func enhance(candidates []types.Candidate, graphResults []types.GraphResult) {
	if len(candidates) == 0 {
		return
	}

	for i := range candidates {
		if candidates[i].GraphContext != "" {
			continue
		}
		for j := range graphResults {
			if mentions(candidates[i].Text, &graphResults[j]) {
				candidates[i].GraphContext = graphResults[j].Text
				break
			}
		}
	}

	candidates[0].GlobalGraphContext = globalSummary(graphResults)
}

// mentions reports whether the text names the result's entity or any of its
// related entities.
func mentions(text string, g *types.GraphResult) bool {
	if text == "" {
		return false
	}
	if label := g.Entity.Label(); label != "" && strings.Contains(text, label) {
		return true
	}
	for i := range g.RelatedEntities {
		if label := g.RelatedEntities[i].Label(); label != "" && strings.Contains(text, label) {
			return true
		}
	}
	return false
}

const summaryTopPerKind = 3

var kindNames = map[types.EntityKind]string{
	types.EntityComponent:     "构件",
	types.EntityMaterial:      "材料",
	types.EntitySpecification: "规范",
	types.EntityDimension:     "尺寸",
}

// summaryKindOrder fixes the rendering order of the summary.
var summaryKindOrder = []types.EntityKind{
	types.EntityComponent, types.EntityMaterial, types.EntitySpecification, types.EntityDimension,
}

func globalSummary(graphResults []types.GraphResult) string {
	byKind := map[types.EntityKind][]types.GraphResult{}
	for _, g := range graphResults {
		byKind[g.Entity.Kind] = append(byKind[g.Entity.Kind], g)
	}

	var parts []string
	for _, kind := range summaryKindOrder {
		group := byKind[kind]
		if len(group) == 0 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool { return group[i].Score > group[j].Score })
		if len(group) > summaryTopPerKind {
			group = group[:summaryTopPerKind]
		}
		labels := make([]string, 0, len(group))
		for i := range group {
			labels = append(labels, group[i].Entity.Label())
		}
		parts = append(parts, kindNames[kind]+": "+strings.Join(labels, "、"))
	}
	if len(parts) == 0 {
		return ""
	}
	return "图谱要点 " + strings.Join(parts, "; ")
}

func sortByRerank(candidates []types.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].RerankScore, candidates[j].RerankScore
		if a == nil || b == nil {
			return a != nil
		}
		return *a > *b
	})
}
