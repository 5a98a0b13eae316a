package retrieval

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildrag/pkg/types"
)

func lex(id string, score float64) types.LexicalHit {
	return types.LexicalHit{ChunkID: id, Score: score}
}

func vec(id string, distance float32) types.VectorHit {
	return types.VectorHit{ChunkID: id, Distance: distance, DocID: "doc-" + id}
}

func TestFuseRRFScores(t *testing.T) {
	hits := channelHits{
		lexical: []types.LexicalHit{lex("c1", 5.0), lex("c2", 3.0)},
		vector:  []types.VectorHit{vec("c2", 0.95), vec("c3", 0.90)},
	}
	candidates := fuse(hits, types.FusionRRF, DefaultWeights(), 60)
	require.Len(t, candidates, 3)

	byID := map[string]types.Candidate{}
	for _, c := range candidates {
		byID[c.ChunkID] = c
	}

	// c2 is seen by both channels.
	want := 0.3/61.0 + 0.4/61.0
	assert.InDelta(t, want, byID["c2"].FusionScore, 1e-12)
	assert.InDelta(t, 0.3/61.0, byID["c1"].FusionScore, 1e-12)
	assert.InDelta(t, 0.4/61.0, byID["c3"].FusionScore, 1e-12)
	assert.Equal(t, "c2", candidates[0].ChunkID)

	assert.ElementsMatch(t, []types.RetrievalSource{types.SourceBM25, types.SourceVector}, byID["c2"].Sources)
	assert.Equal(t, 1, byID["c2"].ChannelRanks[types.SourceBM25])
	assert.Equal(t, 1, byID["c2"].ChannelRanks[types.SourceVector])
	assert.Equal(t, "doc-c2", byID["c2"].DocID)
}

func TestFuseRRFGraphContextBonus(t *testing.T) {
	withContext := channelHits{graph: []types.GraphResult{
		{Entity: types.GraphEntity{Kind: types.EntityComponent, Code: "KL-1"}, Text: "构件 KL-1 为梁。", Score: 0.9},
	}}
	bare := channelHits{graph: []types.GraphResult{
		{Entity: types.GraphEntity{Kind: types.EntityComponent, Code: "KL-1"}, Score: 0.9},
	}}

	boosted := fuse(withContext, types.FusionRRF, DefaultWeights(), 60)
	plain := fuse(bare, types.FusionRRF, DefaultWeights(), 60)
	require.Len(t, boosted, 1)
	require.Len(t, plain, 1)
	assert.InDelta(t, plain[0].FusionScore*1.2, boosted[0].FusionScore, 1e-12)
}

func TestFuseWeightedNormalizesAndBoosts(t *testing.T) {
	hits := channelHits{
		lexical: []types.LexicalHit{lex("c1", 8.0), lex("c2", 2.0)},
		graph: []types.GraphResult{
			{Entity: types.GraphEntity{Kind: types.EntityMaterial, Grade: "C30"}, Text: "材料 C30 为混凝土。", Score: 0.9},
		},
	}
	candidates := fuse(hits, types.FusionWeighted, DefaultWeights(), 60)
	require.Len(t, candidates, 3)

	byID := map[string]types.Candidate{}
	for _, c := range candidates {
		byID[c.ChunkID] = c
	}
	// Min-max: c1 -> 1.0, c2 -> 0.0.
	assert.InDelta(t, 0.3, byID["c1"].FusionScore, 1e-12)
	assert.InDelta(t, 0.0, byID["c2"].FusionScore, 1e-12)
	// Single graph hit normalizes to 1.0 plus the context bonus.
	assert.InDelta(t, 0.3+0.1, byID["Material:C30"].FusionScore, 1e-12)
}

func TestFuseWeightedInvertsAscendingMetric(t *testing.T) {
	hits := channelHits{
		vector: []types.VectorHit{vec("near", 0.4), vec("far", 3.2)},
		// L2: smaller distance is better.
		vectorAscending: true,
	}
	candidates := fuse(hits, types.FusionWeighted, DefaultWeights(), 60)
	require.Len(t, candidates, 2)
	assert.Equal(t, "near", candidates[0].ChunkID)
	assert.Greater(t, candidates[0].FusionScore, candidates[1].FusionScore)
}

func TestFuseTieBreaks(t *testing.T) {
	// Two candidates with identical fusion scores and no vector signal fall
	// back to chunk ID order.
	hits := channelHits{
		lexical: []types.LexicalHit{lex("b", 1.0)},
		vector:  []types.VectorHit{vec("a", 0.9)},
	}
	weights := map[types.RetrievalSource]float64{
		types.SourceBM25:   0.5,
		types.SourceVector: 0.5,
		types.SourceGraph:  0.0,
	}
	candidates := fuse(hits, types.FusionRRF, weights, 60)
	require.Len(t, candidates, 2)
	require.InDelta(t, candidates[0].FusionScore, candidates[1].FusionScore, 1e-15)
	// Equal fusion scores: the one with the higher vector score wins.
	assert.Equal(t, "a", candidates[0].ChunkID)
	assert.Equal(t, "b", candidates[1].ChunkID)
}

func TestFuseDeterministic(t *testing.T) {
	hits := channelHits{
		lexical: []types.LexicalHit{lex("c1", 5), lex("c2", 4), lex("c3", 3)},
		vector:  []types.VectorHit{vec("c3", 0.99), vec("c1", 0.95)},
	}
	first := fuse(hits, types.FusionRRF, DefaultWeights(), 60)
	second := fuse(hits, types.FusionRRF, DefaultWeights(), 60)
	assert.Equal(t, first, second)
}

func TestMinMaxConstantList(t *testing.T) {
	norm := minMax([]float64{2, 2, 2})
	for _, v := range norm {
		assert.True(t, math.Abs(v-1.0) < 1e-15)
	}
	assert.Nil(t, minMax(nil))
}

func TestSortByRerank(t *testing.T) {
	low, high := 0.2, 0.8
	candidates := []types.Candidate{
		{ChunkID: "a", RerankScore: &low},
		{ChunkID: "b", RerankScore: &high},
	}
	sortByRerank(candidates)
	assert.Equal(t, "b", candidates[0].ChunkID)
}
