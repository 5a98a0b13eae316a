package projectdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"buildrag/pkg/types"
)

// InsertDocument persists a new document row.
func (s *Store) InsertDocument(ctx context.Context, doc *types.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents
			(id, name, doc_type, permission_level, project_id, source_path,
			 status, total_chunks, vector_collection, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		doc.ID, doc.Name, doc.DocType, doc.PermissionLevel, nullable(doc.ProjectID),
		doc.SourcePath, doc.Status, doc.TotalChunks, doc.VectorCollection,
		doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document %s: %w", doc.ID, err)
	}
	return nil
}

// GetDocument loads one document row.
func (s *Store) GetDocument(ctx context.Context, docID string) (*types.Document, error) {
	var doc types.Document
	err := s.db.GetContext(ctx, &doc, `
		SELECT id, name, doc_type, permission_level, COALESCE(project_id, '') AS project_id,
		       source_path, status, total_chunks, vector_collection, created_at, updated_at
		FROM documents WHERE id = $1`, docID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", docID, err)
	}
	return &doc, nil
}

// UpdateDocumentStatus moves a document through the ingestion lifecycle.
func (s *Store) UpdateDocumentStatus(ctx context.Context, docID string, status types.DocStatus, totalChunks int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = $2, total_chunks = $3, updated_at = NOW()
		WHERE id = $1`, docID, status, totalChunks)
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", docID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertChunks persists all chunks of a document in one transaction.
func (s *Store) InsertChunks(ctx context.Context, chunks []types.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin chunk insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range chunks {
		c := &chunks[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chunks
				(id, document_id, chunk_index, text, token_count, page_num,
				 vector_id, vector_collection)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			c.ID, c.DocumentID, c.ChunkIndex, c.Text, c.TokenCount, c.PageNum,
			c.VectorID, c.VectorCollection)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk insert: %w", err)
	}
	return nil
}

// ListChunks loads all chunks of a document in index order.
func (s *Store) ListChunks(ctx context.Context, docID string) ([]types.Chunk, error) {
	var chunks []types.Chunk
	err := s.db.SelectContext(ctx, &chunks, `
		SELECT id, document_id, chunk_index, text, token_count, page_num,
		       vector_id, vector_collection
		FROM chunks WHERE document_id = $1 ORDER BY chunk_index`, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks of %s: %w", docID, err)
	}
	return chunks, nil
}

// AllChunks streams every chunk for index rebuilds.
func (s *Store) AllChunks(ctx context.Context) ([]types.Chunk, error) {
	var chunks []types.Chunk
	err := s.db.SelectContext(ctx, &chunks, `
		SELECT id, document_id, chunk_index, text, token_count, page_num,
		       vector_id, vector_collection
		FROM chunks ORDER BY document_id, chunk_index`)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunk corpus: %w", err)
	}
	return chunks, nil
}

// ChunksByIDs resolves chunk IDs to their text and owning document. Missing
// IDs are simply absent from the result.
func (s *Store) ChunksByIDs(ctx context.Context, chunkIDs []string) (map[string]types.ChunkRef, error) {
	if len(chunkIDs) == 0 {
		return map[string]types.ChunkRef{}, nil
	}
	query, args, err := sqlx.In(`SELECT id, text, document_id FROM chunks WHERE id IN (?)`, chunkIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to expand IN query: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunk texts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	refs := make(map[string]types.ChunkRef, len(chunkIDs))
	for rows.Next() {
		var id, text, docID string
		if err := rows.Scan(&id, &text, &docID); err != nil {
			return nil, fmt.Errorf("failed to scan chunk text: %w", err)
		}
		refs[id] = types.ChunkRef{Text: text, DocID: docID}
	}
	return refs, rows.Err()
}

// DeleteDocumentCascade removes a document and its chunks.
func (s *Store) DeleteDocumentCascade(ctx context.Context, docID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin document delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, docID); err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", docID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, docID); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", docID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit document delete: %w", err)
	}
	s.logger.Info("document deleted", "doc_id", docID)
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
