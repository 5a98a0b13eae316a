// Package rag is the end-to-end question answering pipeline: cache check,
// hybrid retrieval, prompt assembly, generation and cache store.
package rag

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"

	"buildrag/internal/config"
	"buildrag/internal/llm"
	"buildrag/internal/logging"
	"buildrag/internal/retrieval"
	"buildrag/internal/vectorstore"
	"buildrag/pkg/types"
)

// Fallback sentences, matched to the query language.
const (
	fallbackNoResultZH    = "未找到与您的问题相关的内容,请尝试换一种问法或补充更多细节。"
	fallbackNoResultEN    = "No relevant content was found for your question. Please try rephrasing or adding more detail."
	fallbackUnavailableZH = "系统暂时不可用,请稍后重试。"
	fallbackUnavailableEN = "The system is temporarily unavailable. Please try again later."
)

// sourceTextLimit caps each cited source text in the answer.
const sourceTextLimit = 200

// Request is one QA call.
type Request struct {
	Query        string
	TopK         int
	ProjectID    string
	ExtraContext string
	UseRerank    bool
	UseGraph     bool
	SkipCache    bool
}

// retriever is the hybrid search entry.
type retriever interface {
	Search(ctx context.Context, query string, opts retrieval.Options) ([]types.Candidate, error)
}

// chatClient generates the final answer.
type chatClient interface {
	Chat(ctx context.Context, messages []llm.Message) (string, error)
	Model() string
}

// queryCache is the best-effort result cache. A miss and a cache failure look
// the same to the pipeline.
type queryCache interface {
	GetCachedQueryResult(ctx context.Context, query string) (*types.CachedQueryResult, bool)
	CacheQueryResult(ctx context.Context, query string, result *types.CachedQueryResult)
}

// Pipeline wires the stages together. Safe for concurrent use.
type Pipeline struct {
	retriever retriever
	chat      chatClient
	cache     queryCache
	cfg       *config.RetrievalConfig
	cacheCfg  *config.CacheConfig
	logger    logging.Logger
}

// New assembles the pipeline. cache may be nil when caching is disabled.
func New(r retriever, chat chatClient, cache queryCache, cfg *config.RetrievalConfig, cacheCfg *config.CacheConfig) *Pipeline {
	return &Pipeline{
		retriever: r,
		chat:      chat,
		cache:     cache,
		cfg:       cfg,
		cacheCfg:  cacheCfg,
		logger:    logging.WithComponent("rag"),
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// normalizeQuery trims and collapses whitespace. The normalized form is also
// the cache fingerprint input.
func normalizeQuery(query string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(query), " ")
}

// Ask answers one question end to end.
func (p *Pipeline) Ask(ctx context.Context, req Request) (*types.Answer, error) {
	start := time.Now()

	query := normalizeQuery(req.Query)
	if query == "" {
		return nil, &InvalidRequestError{Field: "query", Reason: "query cannot be empty"}
	}

	if p.cacheEnabled() && !req.SkipCache {
		if cached, ok := p.cache.GetCachedQueryResult(ctx, query); ok {
			p.logger.Debug("cache hit", "query", query)
			return &types.Answer{
				Answer:  cached.Answer,
				Sources: cached.Sources,
				Query:   query,
				Cached:  true,
				Metadata: types.AnswerMetadata{
					RetrievalCount: len(cached.Sources),
					ResponseTime:   time.Since(start),
					Timestamp:      time.Now().UTC(),
				},
			}, nil
		}
	}

	opts := retrieval.Options{
		TopK:             req.TopK,
		UseRerank:        req.UseRerank,
		UseGraph:         req.UseGraph,
		EnhanceWithGraph: req.UseGraph,
	}
	if req.ProjectID != "" {
		opts.Filter = &vectorstore.Filter{ProjectID: req.ProjectID}
		opts.DocID = req.ProjectID
	}

	candidates, err := p.retriever.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	if len(candidates) == 0 {
		return p.fallback(query, fallbackSentence(query, false), start, true), nil
	}

	messages := buildPrompt(query, candidates, req.ExtraContext, p.cfg.MaxContextChars)
	answerText, err := p.chat.Chat(ctx, messages)
	if err != nil {
		p.logger.Error("generation failed after retries", "error", err)
		return p.fallback(query, fallbackSentence(query, true), start, false), nil
	}

	answer := &types.Answer{
		Answer:  answerText,
		Sources: toSources(candidates),
		Query:   query,
		Cached:  false,
		Metadata: types.AnswerMetadata{
			RetrievalCount: len(candidates),
			ResponseTime:   time.Since(start),
			Model:          p.chat.Model(),
			Timestamp:      time.Now().UTC(),
			GraphEnhanced:  graphEnhanced(candidates),
		},
	}

	if p.cacheEnabled() && ctx.Err() == nil {
		p.cache.CacheQueryResult(ctx, query, &types.CachedQueryResult{
			Answer:  answer.Answer,
			Sources: answer.Sources,
		})
	}
	return answer, nil
}

func (p *Pipeline) cacheEnabled() bool {
	return p.cache != nil && p.cacheCfg != nil && p.cacheCfg.Enabled
}

func (p *Pipeline) fallback(query, sentence string, start time.Time, noResult bool) *types.Answer {
	return &types.Answer{
		Answer: sentence,
		Query:  query,
		Metadata: types.AnswerMetadata{
			ResponseTime: time.Since(start),
			Timestamp:    time.Now().UTC(),
			NoResult:     noResult,
		},
	}
}

// fallbackSentence picks the fixed message in the query's language.
func fallbackSentence(query string, unavailable bool) string {
	if hasHan(query) {
		if unavailable {
			return fallbackUnavailableZH
		}
		return fallbackNoResultZH
	}
	if unavailable {
		return fallbackUnavailableEN
	}
	return fallbackNoResultEN
}

func hasHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

func toSources(candidates []types.Candidate) []types.AnswerSource {
	sources := make([]types.AnswerSource, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		source := types.SourceVector
		if len(c.Sources) > 0 {
			source = c.Sources[0]
		}
		sources = append(sources, types.AnswerSource{
			ChunkID: c.ChunkID,
			DocID:   c.DocID,
			Text:    truncateRunes(c.Text, sourceTextLimit),
			Score:   c.FusionScore,
			Source:  source,
		})
	}
	return sources
}

func graphEnhanced(candidates []types.Candidate) bool {
	for i := range candidates {
		if candidates[i].GraphContext != "" || candidates[i].GlobalGraphContext != "" {
			return true
		}
	}
	return false
}

// InvalidRequestError marks caller mistakes; these are returned, not logged
// as errors.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Field + ": " + e.Reason
}
