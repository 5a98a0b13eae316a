package ingest

import (
	"context"
	"fmt"

	"buildrag/internal/graphstore"
	"buildrag/internal/index"
	"buildrag/internal/logging"
	"buildrag/internal/vectorstore"
	"buildrag/pkg/types"
)

// embedBatchSize bounds one embedding request.
const embedBatchSize = 64

type documentStore interface {
	InsertDocument(ctx context.Context, doc *types.Document) error
	GetDocument(ctx context.Context, docID string) (*types.Document, error)
	UpdateDocumentStatus(ctx context.Context, docID string, status types.DocStatus, totalChunks int) error
	InsertChunks(ctx context.Context, chunks []types.Chunk) error
	ListChunks(ctx context.Context, docID string) ([]types.Chunk, error)
	AllChunks(ctx context.Context) ([]types.Chunk, error)
	DeleteDocumentCascade(ctx context.Context, docID string) error
}

type vectorWriter interface {
	Insert(ctx context.Context, collection string, records []types.VectorRecord) ([]string, error)
	Delete(ctx context.Context, collection string, filter *vectorstore.Filter) (int, error)
}

type graphCleaner interface {
	DeleteDocumentAndRelations(ctx context.Context, docID string) (graphstore.Counters, error)
}

type embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type lexicalIndex interface {
	Build(docs []index.Document)
	AddDocuments(docs []index.Document)
	Save(path string) error
}

// Service drives the ingestion lifecycle of documents.
type Service struct {
	store    documentStore
	vectors  vectorWriter
	graph    graphCleaner
	embed    embedder
	lexical  lexicalIndex
	chunker  *Chunker
	savePath string
	logger   logging.Logger
}

// New wires the ingestion service. The graph cleaner may be nil when no
// graph store is configured.
func New(store documentStore, vectors vectorWriter, graph graphCleaner, embed embedder, lexical lexicalIndex, savePath string) *Service {
	return &Service{
		store:    store,
		vectors:  vectors,
		graph:    graph,
		embed:    embed,
		lexical:  lexical,
		chunker:  NewChunker(defaultChunkSize, defaultChunkOverlap),
		savePath: savePath,
		logger:   logging.WithComponent("ingest"),
	}
}

// CollectionFor maps a document type to its vector tier.
func CollectionFor(docType types.DocType) string {
	switch docType {
	case types.DocTypeRegulation:
		return types.CollectionStandards
	case types.DocTypeContract:
		return types.CollectionContracts
	default:
		return types.CollectionProjects
	}
}

// IngestDocument persists a document end to end: chunks first, vectors
// second, and only then the completed status, so a reader observing
// completed can rely on both. Any failure marks the document failed.
func (s *Service) IngestDocument(ctx context.Context, doc *types.Document, text string) error {
	doc.VectorCollection = CollectionFor(doc.DocType)
	if err := s.store.InsertDocument(ctx, doc); err != nil {
		return err
	}
	if err := s.store.UpdateDocumentStatus(ctx, doc.ID, types.DocStatusProcessing, 0); err != nil {
		return err
	}

	chunks := s.chunker.Split(doc.ID, text)
	if len(chunks) == 0 {
		_ = s.store.UpdateDocumentStatus(ctx, doc.ID, types.DocStatusFailed, 0)
		return fmt.Errorf("document %s produced no chunks", doc.ID)
	}
	for i := range chunks {
		chunks[i].VectorCollection = doc.VectorCollection
	}

	if err := s.store.InsertChunks(ctx, chunks); err != nil {
		_ = s.store.UpdateDocumentStatus(ctx, doc.ID, types.DocStatusFailed, 0)
		return err
	}
	if err := s.indexChunks(ctx, doc, chunks); err != nil {
		_ = s.store.UpdateDocumentStatus(ctx, doc.ID, types.DocStatusFailed, 0)
		return err
	}

	if err := s.store.UpdateDocumentStatus(ctx, doc.ID, types.DocStatusCompleted, len(chunks)); err != nil {
		return err
	}
	doc.Status = types.DocStatusCompleted
	doc.TotalChunks = len(chunks)
	s.logger.Info("document ingested", "doc_id", doc.ID, "chunks", len(chunks))
	return nil
}

// indexChunks embeds and stores the vectors, then extends the lexical index.
func (s *Service) indexChunks(ctx context.Context, doc *types.Document, chunks []types.Chunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].Text
		}
		vectors, err := s.embed.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks of %s: %w", doc.ID, err)
		}

		records := make([]types.VectorRecord, len(batch))
		for i := range batch {
			records[i] = types.VectorRecord{
				ChunkID:         batch[i].ID,
				Embedding:       vectors[i],
				DocID:           doc.ID,
				DocType:         doc.DocType,
				ProjectID:       doc.ProjectID,
				PermissionLevel: doc.PermissionLevel,
				PageNum:         batch[i].PageNum,
			}
		}
		if _, err := s.vectors.Insert(ctx, doc.VectorCollection, records); err != nil {
			return fmt.Errorf("failed to store vectors of %s: %w", doc.ID, err)
		}
	}

	if s.lexical != nil {
		s.lexical.AddDocuments(indexDocs(chunks))
		s.saveIndex()
	}
	return nil
}

// ReindexDocument replaces a document's vectors from its stored chunks.
func (s *Service) ReindexDocument(ctx context.Context, docID string) error {
	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return err
	}
	chunks, err := s.store.ListChunks(ctx, docID)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("document %s has no chunks to reindex", docID)
	}
	if err := s.store.UpdateDocumentStatus(ctx, docID, types.DocStatusProcessing, doc.TotalChunks); err != nil {
		return err
	}

	if _, err := s.vectors.Delete(ctx, doc.VectorCollection, &vectorstore.Filter{DocID: docID}); err != nil {
		_ = s.store.UpdateDocumentStatus(ctx, docID, types.DocStatusFailed, doc.TotalChunks)
		return err
	}
	if err := s.indexChunks(ctx, doc, chunks); err != nil {
		_ = s.store.UpdateDocumentStatus(ctx, docID, types.DocStatusFailed, doc.TotalChunks)
		return err
	}
	return s.store.UpdateDocumentStatus(ctx, docID, types.DocStatusCompleted, len(chunks))
}

// DeleteDocument removes a document everywhere: vectors, graph, relational
// rows, then the lexical index is rebuilt from the surviving corpus.
func (s *Service) DeleteDocument(ctx context.Context, docID string) error {
	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return err
	}

	if _, err := s.vectors.Delete(ctx, doc.VectorCollection, &vectorstore.Filter{DocID: docID}); err != nil {
		return fmt.Errorf("failed to delete vectors of %s: %w", docID, err)
	}
	if s.graph != nil {
		counters, err := s.graph.DeleteDocumentAndRelations(ctx, docID)
		if err != nil {
			return fmt.Errorf("failed to delete graph entities of %s: %w", docID, err)
		}
		s.logger.Info("graph entities removed", "doc_id", docID, "nodes_deleted", counters.NodesDeleted)
	}
	if err := s.store.DeleteDocumentCascade(ctx, docID); err != nil {
		return err
	}
	return s.RebuildLexicalIndex(ctx)
}

// RebuildLexicalIndex rebuilds the BM25 index from every stored chunk.
func (s *Service) RebuildLexicalIndex(ctx context.Context) error {
	if s.lexical == nil {
		return nil
	}
	chunks, err := s.store.AllChunks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load chunk corpus: %w", err)
	}
	s.lexical.Build(indexDocs(chunks))
	s.saveIndex()
	return nil
}

func (s *Service) saveIndex() {
	if s.savePath == "" {
		return
	}
	if err := s.lexical.Save(s.savePath); err != nil {
		s.logger.Warn("lexical index save failed", "path", s.savePath, "error", err)
	}
}

func indexDocs(chunks []types.Chunk) []index.Document {
	docs := make([]index.Document, len(chunks))
	for i := range chunks {
		docs[i] = index.Document{ChunkID: chunks[i].ID, Text: chunks[i].Text}
	}
	return docs
}
