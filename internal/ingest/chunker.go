// Package ingest turns raw document text into the three persisted
// representations: relational chunks, vector records and the lexical index.
package ingest

import (
	"strings"
	"unicode/utf8"

	"buildrag/pkg/types"
)

// Chunking parameters in runes. A rune approximates a token for Chinese
// text, which dominates the corpus.
const (
	defaultChunkSize    = 500
	defaultChunkOverlap = 50
	minChunkSize        = 50
)

// sentenceEnders mark preferred split points.
var sentenceEnders = map[rune]bool{
	'。': true, '！': true, '？': true, '；': true,
	'.': true, '!': true, '?': true, ';': true, '\n': true,
}

// Chunker splits text on sentence boundaries into overlapping windows.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker; non-positive arguments fall back to defaults.
func NewChunker(size, overlap int) *Chunker {
	if size < minChunkSize {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = defaultChunkOverlap
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split produces ordered chunks for one document. Empty input yields none.
func (c *Chunker) Split(docID, text string) []types.Chunk {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []types.Chunk
	var window []rune
	flush := func() {
		body := strings.TrimSpace(string(window))
		if body == "" {
			return
		}
		chunk := types.NewChunk(docID, len(chunks), body)
		chunk.TokenCount = utf8.RuneCountInString(body)
		chunks = append(chunks, *chunk)
	}

	for _, sentence := range sentences {
		runes := []rune(sentence)
		if len(window)+len(runes) > c.size && len(window) > 0 {
			flush()
			if c.overlap > 0 && len(window) > c.overlap {
				window = append([]rune{}, window[len(window)-c.overlap:]...)
			} else {
				window = window[:0]
			}
		}
		// An oversized single sentence is split hard.
		if len(runes) > c.size {
			flush()
			window = window[:0]
			for len(runes) > c.size {
				window = append(window, runes[:c.size]...)
				flush()
				window = window[:0]
				runes = runes[c.size:]
			}
		}
		window = append(window, runes...)
	}
	flush()
	return chunks
}

func splitSentences(text string) []string {
	var sentences []string
	var current []rune
	for _, r := range text {
		current = append(current, r)
		if sentenceEnders[r] {
			if s := strings.TrimSpace(string(current)); s != "" {
				sentences = append(sentences, s)
			}
			current = current[:0]
		}
	}
	if s := strings.TrimSpace(string(current)); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
