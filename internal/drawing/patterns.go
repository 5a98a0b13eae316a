// Package drawing extracts structural entities and relations from parsed
// drawing bundles and syncs them into the knowledge graph.
package drawing

import (
	"regexp"
	"strings"

	"buildrag/pkg/types"
)

// Material type names used across the rule tables.
const (
	MaterialConcrete = "concrete"
	MaterialRebar    = "rebar"
	MaterialSteel    = "steel"
)

// Dimension type names.
const (
	DimSection   = "section"
	DimThickness = "thickness"
	DimHeight    = "height"
	DimWidth     = "width"
	DimSpan      = "span"
	DimSpacing   = "spacing"
)

var componentPatterns = []struct {
	re    *regexp.Regexp
	ctype types.ComponentType
}{
	{regexp.MustCompile(`\bKZ-?\d+[a-z]?\b`), types.ComponentColumn},
	{regexp.MustCompile(`\bLB-?\d+[a-z]?\b`), types.ComponentSlab},
	{regexp.MustCompile(`\b[KDL]+-?\d+[a-z]?\b`), types.ComponentBeam},
	{regexp.MustCompile(`\bQ-?\d+\b`), types.ComponentWall},
	{regexp.MustCompile(`\bJC-?\d+[a-z]?\b`), types.ComponentFoundation},
}

var materialPatterns = []struct {
	re    *regexp.Regexp
	mtype string
}{
	{regexp.MustCompile(`\bC\d{2,3}\b`), MaterialConcrete},
	{regexp.MustCompile(`\bHRB\d{3}E?\b`), MaterialRebar},
	{regexp.MustCompile(`\bQ\d{3}[A-Z]?\b`), MaterialSteel},
}

var specPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bGB(?:/T)?\s*\d{4,6}-\d{4}\b`),
	regexp.MustCompile(`\bJGJ(?:/T)?\s*\d{2,4}-\d{4}\b`),
	regexp.MustCompile(`\bDL/T\s*\d{3,5}-\d{4}\b`),
	regexp.MustCompile(`\bCECS\s*\d{2,4}[:：]\s*\d{4}\b`),
}

var dimensionPatterns = []struct {
	re    *regexp.Regexp
	dtype string
	unit  string
}{
	{regexp.MustCompile(`\b\d{2,4}[x×]\d{2,4}(?:[x×]\d{2,4})?\b`), DimSection, "mm"},
	{regexp.MustCompile(`(?:板厚|厚度|厚)\s*[=:：]?\s*(\d{2,4})`), DimThickness, "mm"},
	{regexp.MustCompile(`(?:高度|层高)\s*[=:：]?\s*(\d+(?:\.\d+)?)`), DimHeight, "mm"},
	{regexp.MustCompile(`(?:宽度|宽)\s*[=:：]?\s*(\d{2,4})`), DimWidth, "mm"},
	{regexp.MustCompile(`跨度\s*[=:：]?\s*(\d+(?:\.\d+)?)`), DimSpan, "mm"},
	{regexp.MustCompile(`@(\d{2,4})`), DimSpacing, "mm"},
}

// steelLike filters wall codes that are actually steel grades: Q235, Q355B.
var steelLike = regexp.MustCompile(`^Q\d{3}[A-Z]?$`)

var floorPattern = regexp.MustCompile(`(\d{1,3})\s*(?:F\b|层)`)

// ExtractEntities runs the rule pattern set over text and returns raw,
// undeduplicated entities tagged with the given source. Shared by the
// extraction steps here and by query entity linking in graph retrieval.
func ExtractEntities(text, source string) []types.GraphEntity {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var entities []types.GraphEntity
	floor := extractFloor(text)

	claimed := map[string]struct{}{}
	for _, p := range componentPatterns {
		for _, code := range p.re.FindAllString(text, -1) {
			if p.ctype == types.ComponentWall && steelLike.MatchString(code) {
				continue
			}
			// A code matched by an earlier, more specific pattern stays there.
			if _, ok := claimed[code]; ok {
				continue
			}
			claimed[code] = struct{}{}
			e := types.GraphEntity{
				Kind:          types.EntityComponent,
				Code:          code,
				ComponentType: p.ctype,
				Source:        source,
			}
			if floor != "" {
				e.Props = map[string]string{"floor": floor}
			}
			entities = append(entities, e)
		}
	}

	for _, p := range materialPatterns {
		for _, grade := range p.re.FindAllString(text, -1) {
			entities = append(entities, types.GraphEntity{
				Kind:         types.EntityMaterial,
				MaterialType: p.mtype,
				Grade:        grade,
				Source:       source,
			})
		}
	}

	for _, re := range specPatterns {
		for _, code := range re.FindAllString(text, -1) {
			entities = append(entities, types.GraphEntity{
				Kind:   types.EntitySpecification,
				Code:   normalizeSpecCode(code),
				Source: source,
			})
		}
	}

	for _, p := range dimensionPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			value := m[0]
			if len(m) > 1 {
				value = m[1]
			}
			entities = append(entities, types.GraphEntity{
				Kind:    types.EntityDimension,
				DimType: p.dtype,
				Value:   strings.ReplaceAll(value, "×", "x"),
				Unit:    p.unit,
				Source:  source,
			})
		}
	}

	return entities
}

// normalizeSpecCode collapses internal whitespace so "GB 50010-2010" and
// "GB50010-2010" collide on the same key.
func normalizeSpecCode(code string) string {
	return strings.Join(strings.Fields(code), "")
}

func extractFloor(text string) string {
	if m := floorPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// Dedupe keeps the first occurrence of each entity collision key, preserving
// input order.
func Dedupe(entities []types.GraphEntity) []types.GraphEntity {
	seen := make(map[string]struct{}, len(entities))
	out := make([]types.GraphEntity, 0, len(entities))
	for _, e := range entities {
		key := e.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}
