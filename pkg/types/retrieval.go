package types

import "time"

// RetrievalSource identifies which channel produced a candidate.
type RetrievalSource string

const (
	SourceBM25   RetrievalSource = "bm25"
	SourceVector RetrievalSource = "vector"
	SourceGraph  RetrievalSource = "graph"
)

// FusionMethod selects how per-channel rankings are combined.
type FusionMethod string

const (
	FusionRRF      FusionMethod = "rrf"
	FusionWeighted FusionMethod = "weighted"
)

// LexicalHit is one ranked result from the BM25 index.
type LexicalHit struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

// GraphResult is one graph-sourced retrieval hit with its rendered context.
type GraphResult struct {
	Entity          GraphEntity     `json:"entity"`
	Relations       []GraphRelation `json:"relations,omitempty"`
	RelatedEntities []GraphEntity   `json:"related_entities,omitempty"`
	Text            string          `json:"text"`
	Score           float64         `json:"score"`
	Source          RetrievalSource `json:"source"`
}

// Candidate is one fused retrieval result with full provenance.
type Candidate struct {
	ChunkID            string                      `json:"chunk_id"`
	Text               string                      `json:"text"`
	ChannelRanks       map[RetrievalSource]int     `json:"channel_ranks,omitempty"`
	ChannelScores      map[RetrievalSource]float64 `json:"channel_scores,omitempty"`
	FusionScore        float64                     `json:"fusion_score"`
	RerankScore        *float64                    `json:"rerank_score,omitempty"`
	Sources            []RetrievalSource           `json:"retrieval_sources"`
	GraphContext       string                      `json:"graph_context,omitempty"`
	GlobalGraphContext string                      `json:"global_graph_context,omitempty"`
	DocID              string                      `json:"doc_id,omitempty"`
	DocType            DocType                     `json:"doc_type,omitempty"`
}

// HasSource reports whether the candidate was seen by the given channel.
func (c *Candidate) HasSource(s RetrievalSource) bool {
	for _, src := range c.Sources {
		if src == s {
			return true
		}
	}
	return false
}

// AnswerSource is one cited context in a generated answer.
type AnswerSource struct {
	ChunkID string          `json:"chunk_id"`
	DocID   string          `json:"doc_id,omitempty"`
	Text    string          `json:"text"`
	Score   float64         `json:"score"`
	Source  RetrievalSource `json:"source"`
}

// AnswerMetadata carries observability fields alongside an answer.
type AnswerMetadata struct {
	RetrievalCount int           `json:"retrieval_count"`
	ResponseTime   time.Duration `json:"response_time"`
	Model          string        `json:"model,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
	GraphEnhanced  bool          `json:"graph_enhanced"`
	NoResult       bool          `json:"no_result,omitempty"`
}

// Answer is the end-to-end result of the QA pipeline.
type Answer struct {
	Answer   string         `json:"answer"`
	Sources  []AnswerSource `json:"sources"`
	Query    string         `json:"query"`
	Cached   bool           `json:"cached"`
	Metadata AnswerMetadata `json:"metadata"`
}

// CachedQueryResult is the value stored in the query cache.
type CachedQueryResult struct {
	Answer  string         `json:"answer"`
	Sources []AnswerSource `json:"sources"`
}
