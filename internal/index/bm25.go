// Package index implements an in-memory BM25 Okapi index over the chunk
// corpus with gob persistence. Readers always see a consistent snapshot:
// Build and AddDocuments assemble a new immutable snapshot and swap it in
// under the write lock.
package index

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"buildrag/internal/analyzer"
	"buildrag/internal/logging"
	"buildrag/pkg/types"
)

const (
	// DefaultK1 is the BM25 term-frequency saturation parameter.
	DefaultK1 = 1.5
	// DefaultB is the BM25 length-normalization parameter.
	DefaultB = 0.75

	minK1 = 1.2
	maxK1 = 2.0
)

// Tokenizer is the slice of the analyzer the index needs.
type Tokenizer interface {
	Tokenize(text string, mode analyzer.Mode) []string
}

// Document is one indexable chunk.
type Document struct {
	ChunkID string
	Text    string
}

// snapshot is an immutable built index.
type snapshot struct {
	chunkIDs  []string
	docTokens [][]string
	docLens   []int
	avgLen    float64
	postings  map[string]map[int]int // term -> doc ordinal -> frequency
	df        map[string]int
}

// BM25Index is the lexical retrieval index.
type BM25Index struct {
	mu        sync.RWMutex
	snap      *snapshot
	tokenizer Tokenizer
	k1        float64
	b         float64
	logger    logging.Logger
}

// New creates an empty index. k1 is clamped to [1.2, 2.0].
func New(tokenizer Tokenizer, k1, b float64) *BM25Index {
	if k1 < minK1 || k1 > maxK1 {
		k1 = DefaultK1
	}
	if b <= 0 || b > 1 {
		b = DefaultB
	}
	return &BM25Index{
		tokenizer: tokenizer,
		k1:        k1,
		b:         b,
		logger:    logging.WithComponent("bm25"),
	}
}

// Build tokenizes the corpus and replaces the active snapshot. Chunks with
// empty text or an empty token list are skipped, not fatal.
func (idx *BM25Index) Build(docs []Document) {
	snap := idx.assemble(nil, nil, docs)

	idx.mu.Lock()
	idx.snap = snap
	idx.mu.Unlock()

	idx.logger.Info("BM25 index built", "documents", len(snap.chunkIDs), "terms", len(snap.postings))
}

// AddDocuments extends the corpus. The post-state is indistinguishable from a
// full rebuild over the union.
func (idx *BM25Index) AddDocuments(docs []Document) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var ids []string
	var tokens [][]string
	if idx.snap != nil {
		ids = idx.snap.chunkIDs
		tokens = idx.snap.docTokens
	}
	idx.snap = idx.assemble(ids, tokens, docs)
}

// assemble builds a snapshot from an existing tokenized corpus plus new raw
// documents.
func (idx *BM25Index) assemble(ids []string, tokens [][]string, docs []Document) *snapshot {
	snap := &snapshot{
		postings: make(map[string]map[int]int),
		df:       make(map[string]int),
	}
	snap.chunkIDs = append(snap.chunkIDs, ids...)
	snap.docTokens = append(snap.docTokens, tokens...)

	for i := range docs {
		if docs[i].Text == "" {
			idx.logger.Warn("skipping empty chunk", "chunk_id", docs[i].ChunkID)
			continue
		}
		toks := idx.tokenizer.Tokenize(docs[i].Text, analyzer.ModeSearch)
		if len(toks) == 0 {
			idx.logger.Warn("skipping chunk with no tokens", "chunk_id", docs[i].ChunkID)
			continue
		}
		snap.chunkIDs = append(snap.chunkIDs, docs[i].ChunkID)
		snap.docTokens = append(snap.docTokens, toks)
	}

	totalLen := 0
	snap.docLens = make([]int, len(snap.docTokens))
	for i, toks := range snap.docTokens {
		snap.docLens[i] = len(toks)
		totalLen += len(toks)
		seen := make(map[string]struct{}, len(toks))
		for _, term := range toks {
			if snap.postings[term] == nil {
				snap.postings[term] = make(map[int]int)
			}
			snap.postings[term][i]++
			if _, ok := seen[term]; !ok {
				snap.df[term]++
				seen[term] = struct{}{}
			}
		}
	}
	if len(snap.docLens) > 0 {
		snap.avgLen = float64(totalLen) / float64(len(snap.docLens))
	}
	return snap
}

// Search scores the query against the active snapshot and returns up to topK
// hits, score-descending, ties broken by chunk ID. An unbuilt index returns
// empty.
func (idx *BM25Index) Search(query string, topK int) []types.LexicalHit {
	if topK <= 0 {
		return nil
	}

	idx.mu.RLock()
	snap := idx.snap
	idx.mu.RUnlock()

	if snap == nil || len(snap.chunkIDs) == 0 {
		return nil
	}

	queryTerms := idx.tokenizer.Tokenize(query, analyzer.ModeSearch)
	if len(queryTerms) == 0 {
		return nil
	}

	n := float64(len(snap.chunkIDs))
	scores := make(map[int]float64)
	for _, term := range queryTerms {
		posting, ok := snap.postings[term]
		if !ok {
			continue // zero postings contribute zero
		}
		df := float64(snap.df[term])
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)
		for doc, freq := range posting {
			tf := float64(freq)
			norm := idx.k1 * (1 - idx.b + idx.b*float64(snap.docLens[doc])/snap.avgLen)
			scores[doc] += idf * tf * (idx.k1 + 1) / (tf + norm)
		}
	}

	hits := make([]types.LexicalHit, 0, len(scores))
	for doc, score := range scores {
		if score <= 0 {
			continue
		}
		hits = append(hits, types.LexicalHit{ChunkID: snap.chunkIDs[doc], Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	for i := range hits {
		hits[i].Rank = i + 1
	}
	return hits
}

// Size returns the number of indexed chunks.
func (idx *BM25Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.snap == nil {
		return 0
	}
	return len(idx.snap.chunkIDs)
}

// Params returns the active BM25 parameters.
func (idx *BM25Index) Params() (k1, b float64) {
	return idx.k1, idx.b
}

func (idx *BM25Index) validateLoaded(ids []string, tokens [][]string) error {
	if len(ids) != len(tokens) {
		return fmt.Errorf("corrupt index: %d ids vs %d token lists", len(ids), len(tokens))
	}
	return nil
}
