package drawing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"buildrag/pkg/types"
)

// ChatCompleter is the single-shot chat call enrichment needs.
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

const enrichSystemPrompt = `你是建筑图纸信息抽取助手。从给定的图纸文本中抽取结构实体，只输出一个JSON数组，不要输出任何其他文字。
数组元素格式:
{"type":"component|material|specification|dimension","code":"","component_type":"beam|column|slab|wall|foundation","grade":"","material_type":"concrete|rebar|steel","dim_type":"","value":"","unit":""}
只填写与type对应的字段。`

// LLMEnricher asks a chat model for additional entities. The response must be
// a bare JSON array of the fixed schema; anything else is rejected so the
// pipeline degrades to rule output only.
type LLMEnricher struct {
	chat ChatCompleter
}

// NewLLMEnricher wraps a chat client.
func NewLLMEnricher(chat ChatCompleter) *LLMEnricher {
	return &LLMEnricher{chat: chat}
}

type enrichedEntity struct {
	Type          string `json:"type"`
	Code          string `json:"code"`
	ComponentType string `json:"component_type"`
	Grade         string `json:"grade"`
	MaterialType  string `json:"material_type"`
	DimType       string `json:"dim_type"`
	Value         string `json:"value"`
	Unit          string `json:"unit"`
}

// Enrich sends the sample and parses the reply strictly.
func (e *LLMEnricher) Enrich(ctx context.Context, sample string) ([]types.GraphEntity, error) {
	reply, err := e.chat.Complete(ctx, enrichSystemPrompt, sample)
	if err != nil {
		return nil, fmt.Errorf("enrichment call failed: %w", err)
	}
	return parseEnrichment(reply)
}

// parseEnrichment accepts a JSON array, optionally wrapped in a markdown
// fence, and rejects unknown fields and unknown type tags.
func parseEnrichment(reply string) ([]types.GraphEntity, error) {
	raw := stripFence(reply)

	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.DisallowUnknownFields()
	var items []enrichedEntity
	if err := decoder.Decode(&items); err != nil {
		return nil, fmt.Errorf("enrichment reply is not the expected JSON array: %w", err)
	}

	entities := make([]types.GraphEntity, 0, len(items))
	for i, item := range items {
		entity, err := item.toEntity()
		if err != nil {
			return nil, fmt.Errorf("enrichment item %d: %w", i, err)
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

func (item *enrichedEntity) toEntity() (types.GraphEntity, error) {
	switch item.Type {
	case "component":
		if item.Code == "" {
			return types.GraphEntity{}, fmt.Errorf("component without code")
		}
		return types.GraphEntity{
			Kind:          types.EntityComponent,
			Code:          item.Code,
			ComponentType: types.ComponentType(item.ComponentType),
			Source:        "llm",
		}, nil
	case "material":
		if item.Grade == "" {
			return types.GraphEntity{}, fmt.Errorf("material without grade")
		}
		return types.GraphEntity{
			Kind:         types.EntityMaterial,
			MaterialType: item.MaterialType,
			Grade:        item.Grade,
			Source:       "llm",
		}, nil
	case "specification":
		if item.Code == "" {
			return types.GraphEntity{}, fmt.Errorf("specification without code")
		}
		return types.GraphEntity{
			Kind:   types.EntitySpecification,
			Code:   normalizeSpecCode(item.Code),
			Source: "llm",
		}, nil
	case "dimension":
		if item.DimType == "" || item.Value == "" {
			return types.GraphEntity{}, fmt.Errorf("dimension without type or value")
		}
		return types.GraphEntity{
			Kind:    types.EntityDimension,
			DimType: item.DimType,
			Value:   item.Value,
			Unit:    item.Unit,
			Source:  "llm",
		}, nil
	default:
		return types.GraphEntity{}, fmt.Errorf("unknown entity type %q", item.Type)
	}
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
