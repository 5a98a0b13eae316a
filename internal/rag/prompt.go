package rag

import (
	"fmt"
	"strings"

	"buildrag/internal/llm"
	"buildrag/pkg/types"
)

const (
	systemRole = `你是建设工程领域的专业问答助手。基于给定的参考资料回答用户问题:
- 回答要准确、具体,引用资料中的条款和数据;
- 资料不足以回答时明确说明,不要编造;
- 涉及规范时给出规范编号。`

	// graphPreambleLimit caps the knowledge preamble ahead of the contexts.
	graphPreambleLimit = 500

	// DefaultMaxContextChars bounds the concatenated context block.
	DefaultMaxContextChars = 3000
)

// buildPrompt assembles the two-message prompt: fixed system role, then a
// user message carrying graph preamble, numbered contexts, the query and any
// extra context.
func buildPrompt(query string, candidates []types.Candidate, extraContext string, maxContextChars int) []llm.Message {
	if maxContextChars <= 0 {
		maxContextChars = DefaultMaxContextChars
	}

	var sb strings.Builder

	if preamble := candidates[0].GlobalGraphContext; preamble != "" {
		sb.WriteString("[图谱知识] ")
		sb.WriteString(truncateRunes(preamble, graphPreambleLimit))
		sb.WriteString("\n\n")
	}

	sb.WriteString("参考资料:\n")
	used := 0
	for i := range candidates {
		c := &candidates[i]
		text := c.Text
		remaining := maxContextChars - used
		if remaining <= 0 {
			break
		}
		text = truncateRunes(text, remaining)
		used += runeLen(text)

		label := "vector"
		if len(c.Sources) > 0 {
			label = string(c.Sources[0])
		}
		sb.WriteString(fmt.Sprintf("[%d] (%s, %.4f) %s\n", i+1, label, c.FusionScore, text))
		if c.GraphContext != "" && c.GraphContext != text {
			sb.WriteString("    相关图谱: " + truncateRunes(c.GraphContext, graphPreambleLimit) + "\n")
		}
	}

	sb.WriteString("\n问题: " + query + "\n")
	if extraContext != "" {
		sb.WriteString("\n补充背景:\n" + extraContext + "\n")
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemRole},
		{Role: llm.RoleUser, Content: sb.String()},
	}
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func runeLen(s string) int {
	return len([]rune(s))
}
