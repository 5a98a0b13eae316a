package retrieval

import (
	"sort"

	"buildrag/pkg/types"
)

// Fusion defaults.
const (
	DefaultRRFConstant = 60.0
	// graphContextBonus multiplies a graph hit's RRF contribution when it
	// carries rendered context.
	graphContextBonus = 1.2
	// weightedGraphBonus is the additive variant of the same bonus.
	weightedGraphBonus = 0.1
)

// DefaultWeights are the per-channel fusion weights.
func DefaultWeights() map[types.RetrievalSource]float64 {
	return map[types.RetrievalSource]float64{
		types.SourceBM25:   0.3,
		types.SourceVector: 0.4,
		types.SourceGraph:  0.3,
	}
}

// channelHits carries the per-channel results into fusion, each list ordered
// best-first.
type channelHits struct {
	lexical []types.LexicalHit
	vector  []types.VectorHit
	graph   []types.GraphResult
	// vectorAscending is true when smaller vector distances are better.
	vectorAscending bool
}

// fuse merges the three channels into scored candidates. Output is sorted by
// fusion score descending, ties broken by vector score descending then chunk
// ID ascending, so the ordering is deterministic for fixed inputs.
func fuse(hits channelHits, method types.FusionMethod, weights map[types.RetrievalSource]float64, rrfK float64) []types.Candidate {
	if weights == nil {
		weights = DefaultWeights()
	}
	if rrfK <= 0 {
		rrfK = DefaultRRFConstant
	}

	byID := map[string]*types.Candidate{}
	get := func(chunkID string) *types.Candidate {
		if c, ok := byID[chunkID]; ok {
			return c
		}
		c := &types.Candidate{
			ChunkID:       chunkID,
			ChannelRanks:  map[types.RetrievalSource]int{},
			ChannelScores: map[types.RetrievalSource]float64{},
		}
		byID[chunkID] = c
		return c
	}
	mark := func(c *types.Candidate, src types.RetrievalSource, rank int, score float64) {
		c.ChannelRanks[src] = rank
		c.ChannelScores[src] = score
		if !c.HasSource(src) {
			c.Sources = append(c.Sources, src)
		}
	}

	for i, h := range hits.lexical {
		mark(get(h.ChunkID), types.SourceBM25, i+1, h.Score)
	}
	for i, h := range hits.vector {
		c := get(h.ChunkID)
		mark(c, types.SourceVector, i+1, float64(h.Distance))
		if c.DocID == "" {
			c.DocID = h.DocID
			c.DocType = h.DocType
		}
	}
	for i := range hits.graph {
		g := &hits.graph[i]
		c := get(g.Entity.Key())
		mark(c, types.SourceGraph, i+1, g.Score)
		if c.Text == "" {
			c.Text = g.Text
		}
		if g.Text != "" {
			c.GraphContext = g.Text
		}
	}

	switch method {
	case types.FusionWeighted:
		scoreWeighted(byID, hits, weights)
	default:
		scoreRRF(byID, weights, rrfK)
	}

	candidates := make([]types.Candidate, 0, len(byID))
	for _, c := range byID {
		candidates = append(candidates, *c)
	}
	sortCandidates(candidates)
	return candidates
}

func scoreRRF(byID map[string]*types.Candidate, weights map[types.RetrievalSource]float64, k float64) {
	for _, c := range byID {
		score := 0.0
		for src, rank := range c.ChannelRanks {
			contribution := weights[src] / (k + float64(rank))
			if src == types.SourceGraph && c.GraphContext != "" {
				contribution *= graphContextBonus
			}
			score += contribution
		}
		c.FusionScore = score
	}
}

func scoreWeighted(byID map[string]*types.Candidate, hits channelHits, weights map[types.RetrievalSource]float64) {
	normBM25 := minMax(scoresOf(hits.lexical))
	normVector := minMaxVector(hits.vector, hits.vectorAscending)
	normGraph := minMax(graphScores(hits.graph))

	for _, c := range byID {
		score := 0.0
		if rank, ok := c.ChannelRanks[types.SourceBM25]; ok {
			score += weights[types.SourceBM25] * normBM25[rank-1]
		}
		if rank, ok := c.ChannelRanks[types.SourceVector]; ok {
			score += weights[types.SourceVector] * normVector[rank-1]
		}
		if rank, ok := c.ChannelRanks[types.SourceGraph]; ok {
			score += weights[types.SourceGraph] * normGraph[rank-1]
			if c.GraphContext != "" {
				score += weightedGraphBonus
			}
		}
		c.FusionScore = score
	}
}

func scoresOf(hits []types.LexicalHit) []float64 {
	out := make([]float64, len(hits))
	for i, h := range hits {
		out[i] = h.Score
	}
	return out
}

func graphScores(hits []types.GraphResult) []float64 {
	out := make([]float64, len(hits))
	for i := range hits {
		out[i] = hits[i].Score
	}
	return out
}

// minMax normalizes to [0,1]; a constant list maps to all ones.
func minMax(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	out := make([]float64, len(scores))
	for i, s := range scores {
		if hi == lo {
			out[i] = 1.0
			continue
		}
		out[i] = (s - lo) / (hi - lo)
	}
	return out
}

// minMaxVector normalizes distances so higher is always better.
func minMaxVector(hits []types.VectorHit, ascending bool) []float64 {
	scores := make([]float64, len(hits))
	for i, h := range hits {
		scores[i] = float64(h.Distance)
	}
	norm := minMax(scores)
	if ascending {
		for i := range norm {
			norm[i] = 1 - norm[i]
		}
	}
	return norm
}

func sortCandidates(candidates []types.Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := &candidates[i], &candidates[j]
		if a.FusionScore != b.FusionScore {
			return a.FusionScore > b.FusionScore
		}
		av, bv := a.ChannelScores[types.SourceVector], b.ChannelScores[types.SourceVector]
		if av != bv {
			return av > bv
		}
		return a.ChunkID < b.ChunkID
	})
}
