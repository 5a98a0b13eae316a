// Package retrieval fuses the lexical, vector and graph channels into one
// ranked candidate list, with optional cross-encoder rerank and graph-context
// enhancement.
package retrieval

import (
	"context"

	"golang.org/x/sync/errgroup"

	"buildrag/internal/config"
	"buildrag/internal/logging"
	"buildrag/internal/vectorstore"
	"buildrag/pkg/types"
)

// Per-channel candidate caps as multiples of topK.
const (
	bm25CapFactor   = 3
	vectorCapFactor = 3
	graphCapFactor  = 2
)

// lexicalSearcher is the BM25 channel.
type lexicalSearcher interface {
	Search(query string, topK int) []types.LexicalHit
}

// vectorSearcher is the tiered vector channel.
type vectorSearcher interface {
	HierarchicalSearch(ctx context.Context, vector []float32, topK int, filter *vectorstore.Filter) ([]types.VectorHit, error)
}

// graphSearcher is the knowledge-graph channel.
type graphSearcher interface {
	Search(ctx context.Context, query string, topK int, docID string) []types.GraphResult
}

// Embedder turns query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Reranker scores (query, text) pairs; higher is more relevant. One score
// per candidate, in input order.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []types.Candidate) ([]float64, error)
}

// ChunkFetcher resolves chunk IDs to their stored text and owning document.
type ChunkFetcher interface {
	ChunksByIDs(ctx context.Context, chunkIDs []string) (map[string]types.ChunkRef, error)
}

// Options steers one hybrid search call.
type Options struct {
	TopK             int
	Filter           *vectorstore.Filter
	DocID            string
	UseRerank        bool
	UseGraph         bool
	EnhanceWithGraph bool
	Method           types.FusionMethod
	Weights          map[types.RetrievalSource]float64
}

// Hybrid is the three-way retriever.
type Hybrid struct {
	lexical  lexicalSearcher
	vector   vectorSearcher
	graph    graphSearcher
	embedder Embedder
	reranker Reranker
	chunks   ChunkFetcher
	cfg      *config.RetrievalConfig
	metric   vectorstore.Metric
	logger   logging.Logger
}

// NewHybrid assembles the retriever. reranker may be nil; graph may be nil
// when the channel is disabled.
func NewHybrid(lexical lexicalSearcher, vector vectorSearcher, graph graphSearcher, embedder Embedder, reranker Reranker, chunks ChunkFetcher, cfg *config.RetrievalConfig, metric vectorstore.Metric) *Hybrid {
	return &Hybrid{
		lexical:  lexical,
		vector:   vector,
		graph:    graph,
		embedder: embedder,
		reranker: reranker,
		chunks:   chunks,
		cfg:      cfg,
		metric:   metric,
		logger:   logging.WithComponent("retrieval"),
	}
}

// Search fans out to all channels, fuses, optionally reranks and enhances.
// A failing channel contributes empty results; only cancellation aborts.
func (h *Hybrid) Search(ctx context.Context, query string, opts Options) ([]types.Candidate, error) {
	if opts.TopK <= 0 {
		return nil, nil
	}
	if opts.Method == "" {
		opts.Method = types.FusionMethod(h.cfg.FusionMethod)
	}
	if opts.Weights == nil {
		opts.Weights = h.weights()
	}

	hits := channelHits{vectorAscending: h.metric.Ascending()}
	var graphResults []types.GraphResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits.lexical = h.lexical.Search(query, opts.TopK*bm25CapFactor)
		return nil
	})
	g.Go(func() error {
		vector, err := h.embedder.Embed(gctx, query)
		if err != nil {
			h.logger.Warn("query embedding failed, vector channel empty", "error", err)
			return nil
		}
		vhits, err := h.vector.HierarchicalSearch(gctx, vector, opts.TopK*vectorCapFactor, opts.Filter)
		if err != nil {
			h.logger.Warn("vector search failed, channel empty", "error", err)
			return nil
		}
		hits.vector = vhits
		return nil
	})
	if opts.UseGraph && h.graph != nil {
		g.Go(func() error {
			graphResults = h.graph.Search(gctx, query, opts.TopK*graphCapFactor, opts.DocID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hits.graph = graphResults

	candidates := fuse(hits, opts.Method, opts.Weights, h.rrfConstant())
	candidates = h.resolveTexts(ctx, candidates)

	// Rerank over the whole fused pool so the per-channel caps widen the
	// cross-encoder's view, then cut to topK.
	if opts.UseRerank && h.reranker != nil && len(candidates) > 0 {
		candidates = h.rerank(ctx, query, candidates)
	}
	if len(candidates) > opts.TopK {
		candidates = candidates[:opts.TopK]
	}
	if opts.EnhanceWithGraph && len(graphResults) > 0 {
		enhance(candidates, graphResults)
	}

	h.logger.Debug("hybrid search completed",
		"bm25", len(hits.lexical),
		"vector", len(hits.vector),
		"graph", len(hits.graph),
		"fused", len(candidates),
	)
	return candidates, nil
}

// resolveTexts fills candidate text and document provenance from the chunk
// store, so candidates arriving via BM25 alone still carry their doc_id. A
// candidate whose chunk no longer exists is dropped and logged.
func (h *Hybrid) resolveTexts(ctx context.Context, candidates []types.Candidate) []types.Candidate {
	var missing []string
	for i := range candidates {
		if candidates[i].Text == "" {
			missing = append(missing, candidates[i].ChunkID)
		}
	}
	if len(missing) == 0 || h.chunks == nil {
		return candidates
	}

	refs, err := h.chunks.ChunksByIDs(ctx, missing)
	if err != nil {
		h.logger.Warn("chunk text resolution failed", "error", err)
		refs = nil
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if c.Text == "" {
			ref, ok := refs[c.ChunkID]
			if !ok {
				h.logger.Warn("dropping candidate with missing chunk", "chunk_id", c.ChunkID)
				continue
			}
			c.Text = ref.Text
			if c.DocID == "" {
				c.DocID = ref.DocID
			}
		}
		kept = append(kept, c)
	}
	return kept
}

// rerank re-sorts by cross-encoder score, keeping fusion metadata. A rerank
// failure leaves the fused order untouched.
func (h *Hybrid) rerank(ctx context.Context, query string, candidates []types.Candidate) []types.Candidate {
	scores, err := h.reranker.Rerank(ctx, query, candidates)
	if err != nil || len(scores) != len(candidates) {
		h.logger.Warn("rerank failed, keeping fusion order", "error", err)
		return candidates
	}
	for i := range candidates {
		score := scores[i]
		candidates[i].RerankScore = &score
	}
	sortByRerank(candidates)
	return candidates
}

func (h *Hybrid) weights() map[types.RetrievalSource]float64 {
	if h.cfg.BM25Weight == 0 && h.cfg.VectorWeight == 0 && h.cfg.GraphWeight == 0 {
		return DefaultWeights()
	}
	return map[types.RetrievalSource]float64{
		types.SourceBM25:   h.cfg.BM25Weight,
		types.SourceVector: h.cfg.VectorWeight,
		types.SourceGraph:  h.cfg.GraphWeight,
	}
}

func (h *Hybrid) rrfConstant() float64 {
	if h.cfg.RRFConstant > 0 {
		return h.cfg.RRFConstant
	}
	return DefaultRRFConstant
}
