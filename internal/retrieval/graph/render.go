package graph

import (
	"fmt"
	"strings"

	"buildrag/internal/graphstore"
	"buildrag/pkg/types"
)

var componentNames = map[types.ComponentType]string{
	types.ComponentBeam:       "梁",
	types.ComponentColumn:     "柱",
	types.ComponentSlab:       "板",
	types.ComponentWall:       "墙",
	types.ComponentFoundation: "基础",
}

var materialNames = map[string]string{
	"concrete": "混凝土",
	"rebar":    "钢筋",
	"steel":    "钢材",
}

// renderEntity turns one entity into its fixed template sentence.
func renderEntity(e *types.GraphEntity) string {
	switch e.Kind {
	case types.EntityComponent:
		name := componentNames[e.ComponentType]
		if name == "" {
			name = "构件"
		}
		return fmt.Sprintf("构件 %s 为%s。", e.Code, name)
	case types.EntityMaterial:
		name := materialNames[e.MaterialType]
		if name == "" {
			name = "材料"
		}
		return fmt.Sprintf("材料 %s 为%s。", e.Grade, name)
	case types.EntitySpecification:
		return fmt.Sprintf("规范 %s 为设计依据。", e.Code)
	case types.EntityDimension:
		unit := e.Unit
		return fmt.Sprintf("%s尺寸为 %s%s。", dimName(e.DimType), e.Value, unit)
	default:
		return fmt.Sprintf("文档 %s。", e.Name)
	}
}

var dimNames = map[string]string{
	"section":   "截面",
	"thickness": "厚度",
	"height":    "高度",
	"width":     "宽度",
	"span":      "跨度",
	"spacing":   "间距",
}

func dimName(dimType string) string {
	if name, ok := dimNames[dimType]; ok {
		return name
	}
	return dimType
}

// renderComponentView renders the component sentence followed by one sentence
// per relation group.
func renderComponentView(view *graphstore.ComponentView) string {
	var sb strings.Builder
	sb.WriteString(renderEntity(&view.Component))

	if len(view.Materials) > 0 {
		sb.WriteString(fmt.Sprintf("使用材料 %s。", joinLabels(view.Materials)))
	}
	if len(view.Dimensions) > 0 {
		for i := range view.Dimensions {
			sb.WriteString(renderEntity(&view.Dimensions[i]))
		}
	}
	if len(view.Specifications) > 0 {
		sb.WriteString(fmt.Sprintf("引用规范 %s。", joinLabels(view.Specifications)))
	}
	if len(view.Connected) > 0 {
		sb.WriteString(fmt.Sprintf("与 %s 相连。", joinLabels(view.Connected)))
	}
	return sb.String()
}

func joinLabels(entities []types.GraphEntity) string {
	labels := make([]string, 0, len(entities))
	for i := range entities {
		labels = append(labels, entities[i].Label())
	}
	return strings.Join(labels, "、")
}

// truncateRunes cuts s to at most limit runes.
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
