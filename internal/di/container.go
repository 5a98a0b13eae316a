// Package di wires the long-lived application handles: storage clients,
// retrieval stack, QA pipeline, analytics agents and ingestion.
package di

import (
	"context"
	"fmt"

	"buildrag/internal/agents"
	"buildrag/internal/analyzer"
	"buildrag/internal/cache"
	"buildrag/internal/config"
	"buildrag/internal/drawing"
	"buildrag/internal/embeddings"
	"buildrag/internal/graphstore"
	"buildrag/internal/index"
	"buildrag/internal/ingest"
	"buildrag/internal/llm"
	"buildrag/internal/logging"
	"buildrag/internal/projectdb"
	"buildrag/internal/rag"
	"buildrag/internal/retrieval"
	graphretrieval "buildrag/internal/retrieval/graph"
	"buildrag/internal/tools"
	"buildrag/internal/vectorstore"
	"buildrag/internal/workflowlog"
)

// Container owns every long-lived handle. Components receive their
// dependencies explicitly; Shutdown releases them in reverse order.
type Container struct {
	Config *config.Config

	ProjectDB   *projectdb.Store
	VectorStore *vectorstore.Store
	GraphClient *graphstore.Client
	GraphRepo   *graphstore.Repository
	Cache       *cache.Cache

	Analyzer  *analyzer.Analyzer
	Index     *index.BM25Index
	Embedder  embeddings.Service
	LLM       *llm.Client
	Retriever *retrieval.Hybrid
	Pipeline  *rag.Pipeline

	Toolset     *tools.Toolset
	WorkflowLog *workflowlog.Log
	Agents      *agents.Agents
	Ingest      *ingest.Service
	Drawing     *drawing.Extractor

	logger logging.Logger
}

// NewContainer builds the full application graph from configuration. The
// graph store is optional: when unreachable, graph retrieval and drawing
// extraction are disabled and everything else still works.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg, logger: logging.WithComponent("di")}

	logging.SetDefault(logging.New(logging.ParseLevel(cfg.Logging.Level)))

	store, err := projectdb.Open(&cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to open relational store: %w", err)
	}
	c.ProjectDB = store

	c.VectorStore = vectorstore.New(&cfg.Qdrant)
	if err := c.VectorStore.Initialize(ctx); err != nil {
		c.close()
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	if client, err := graphstore.NewClient(&cfg.Neo4j); err != nil {
		c.logger.Warn("graph store unavailable, graph features disabled", "error", err)
	} else {
		c.GraphClient = client
		c.GraphRepo = graphstore.NewRepository(client)
	}

	c.Cache = cache.New(&cfg.Redis, &cfg.Cache)

	c.Analyzer, err = analyzer.New(&cfg.Analyzer)
	if err != nil {
		c.close()
		return nil, fmt.Errorf("failed to build analyzer: %w", err)
	}
	c.Index = index.New(c.Analyzer, cfg.Index.K1, cfg.Index.B)
	if cfg.Index.SavePath != "" {
		if err := c.Index.Load(cfg.Index.SavePath); err != nil {
			c.logger.Warn("lexical index not loaded, starting empty", "path", cfg.Index.SavePath, "error", err)
		}
	}

	c.Embedder, err = embeddings.NewOpenAIService(&cfg.Embedding)
	if err != nil {
		c.close()
		return nil, fmt.Errorf("failed to build embedding service: %w", err)
	}
	c.LLM, err = llm.NewClient(&cfg.LLM)
	if err != nil {
		c.close()
		return nil, fmt.Errorf("failed to build llm client: %w", err)
	}

	metric := vectorstore.ParseMetric(cfg.Qdrant.Metric)
	if c.GraphRepo != nil {
		graphRetriever := graphretrieval.New(c.GraphRepo, &cfg.Retrieval)
		c.Retriever = retrieval.NewHybrid(c.Index, c.VectorStore, graphRetriever,
			c.Embedder, nil, c.ProjectDB, &cfg.Retrieval, metric)
	} else {
		c.Retriever = retrieval.NewHybrid(c.Index, c.VectorStore, nil,
			c.Embedder, nil, c.ProjectDB, &cfg.Retrieval, metric)
	}
	c.Pipeline = rag.New(c.Retriever, c.LLM, c.Cache, &cfg.Retrieval, &cfg.Cache)

	c.Toolset = tools.NewToolset(c.ProjectDB)
	c.WorkflowLog = workflowlog.New(store.DB())
	c.Agents = agents.New(c.Toolset, c.WorkflowLog, c.Pipeline)

	if c.GraphRepo != nil {
		c.Ingest = ingest.New(c.ProjectDB, c.VectorStore, c.GraphRepo, c.Embedder, c.Index, cfg.Index.SavePath)
	} else {
		c.Ingest = ingest.New(c.ProjectDB, c.VectorStore, nil, c.Embedder, c.Index, cfg.Index.SavePath)
	}

	if c.GraphRepo != nil {
		var enricher drawing.Enricher
		if cfg.Drawing.LLMEnrichment {
			enricher = drawing.NewLLMEnricher(c.LLM)
		}
		c.Drawing = drawing.New(c.GraphRepo, enricher, &cfg.Drawing)
	}

	return c, nil
}

// Shutdown releases every handle. Errors are logged, not returned; shutdown
// always proceeds through all handles.
func (c *Container) Shutdown() {
	c.close()
}

func (c *Container) close() {
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			c.logger.Warn("cache close failed", "error", err)
		}
	}
	if c.GraphClient != nil {
		if err := c.GraphClient.Close(context.Background()); err != nil {
			c.logger.Warn("graph close failed", "error", err)
		}
	}
	if c.VectorStore != nil {
		if err := c.VectorStore.Close(); err != nil {
			c.logger.Warn("vector store close failed", "error", err)
		}
	}
	if c.ProjectDB != nil {
		if err := c.ProjectDB.Close(); err != nil {
			c.logger.Warn("relational store close failed", "error", err)
		}
	}
}
