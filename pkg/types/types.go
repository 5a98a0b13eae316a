// Package types defines the shared domain model for the retrieval and
// analytics engine: documents, chunks, vector records, graph entities,
// retrieval candidates, analytics reports and workflow log entries.
package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DocType classifies a source document by authority tier.
type DocType string

const (
	DocTypeRegulation DocType = "regulation"
	DocTypeProject    DocType = "project"
	DocTypeContract   DocType = "contract"
	DocTypeDrawing    DocType = "drawing"
	DocTypeOther      DocType = "other"
)

// DocStatus tracks a document through the ingestion lifecycle.
type DocStatus string

const (
	DocStatusPending    DocStatus = "pending"
	DocStatusProcessing DocStatus = "processing"
	DocStatusCompleted  DocStatus = "completed"
	DocStatusFailed     DocStatus = "failed"
)

// Vector collection names, ordered by authority. Hierarchical search probes
// them in this order.
const (
	CollectionStandards = "standards"
	CollectionProjects  = "projects"
	CollectionContracts = "contracts"
)

// Document is a processed source artifact.
type Document struct {
	ID               string    `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	DocType          DocType   `db:"doc_type" json:"doc_type"`
	PermissionLevel  int       `db:"permission_level" json:"permission_level"`
	ProjectID        string    `db:"project_id" json:"project_id,omitempty"`
	SourcePath       string    `db:"source_path" json:"source_path"`
	Status           DocStatus `db:"status" json:"status"`
	TotalChunks      int       `db:"total_chunks" json:"total_chunks"`
	VectorCollection string    `db:"vector_collection" json:"vector_collection"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// NewDocument creates a pending document with a fresh ID.
func NewDocument(name string, docType DocType, sourcePath string) *Document {
	now := time.Now().UTC()
	return &Document{
		ID:         uuid.New().String(),
		Name:       name,
		DocType:    docType,
		SourcePath: sourcePath,
		Status:     DocStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Validate checks document invariants.
func (d *Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("document ID cannot be empty")
	}
	if d.Name == "" {
		return fmt.Errorf("document name cannot be empty")
	}
	switch d.DocType {
	case DocTypeRegulation, DocTypeProject, DocTypeContract, DocTypeDrawing, DocTypeOther:
	default:
		return fmt.Errorf("invalid doc type: %s", d.DocType)
	}
	if d.Status == DocStatusCompleted && d.TotalChunks < 1 {
		return fmt.Errorf("completed document must have at least one chunk")
	}
	return nil
}

// Chunk is a retrievable unit of text extracted from a document.
type Chunk struct {
	ID               string            `db:"id" json:"id"`
	DocumentID       string            `db:"document_id" json:"document_id"`
	ChunkIndex       int               `db:"chunk_index" json:"chunk_index"`
	Text             string            `db:"text" json:"text"`
	TokenCount       int               `db:"token_count" json:"token_count"`
	PageNum          int               `db:"page_num" json:"page_num,omitempty"`
	VectorID         string            `db:"vector_id" json:"vector_id,omitempty"`
	VectorCollection string            `db:"vector_collection" json:"vector_collection,omitempty"`
	Metadata         map[string]string `db:"-" json:"metadata,omitempty"`
}

// NewChunk creates a chunk with a fresh ID.
func NewChunk(documentID string, index int, text string) *Chunk {
	return &Chunk{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		ChunkIndex: index,
		Text:       text,
	}
}

// Validate checks chunk invariants.
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("chunk ID cannot be empty")
	}
	if c.DocumentID == "" {
		return fmt.Errorf("chunk document ID cannot be empty")
	}
	if c.ChunkIndex < 0 {
		return fmt.Errorf("chunk index must not be negative")
	}
	if c.Text == "" {
		return fmt.Errorf("chunk text cannot be empty")
	}
	return nil
}

// ChunkRef is a chunk's text together with its owning document, as resolved
// for retrieval provenance.
type ChunkRef struct {
	Text  string `json:"text"`
	DocID string `json:"doc_id"`
}

// VectorRecord is the payload stored per chunk per collection in the vector
// database.
type VectorRecord struct {
	ChunkID         string    `json:"chunk_id"`
	Embedding       []float32 `json:"embedding"`
	DocID           string    `json:"doc_id"`
	DocType         DocType   `json:"doc_type"`
	ProjectID       string    `json:"project_id,omitempty"`
	PermissionLevel int       `json:"permission_level"`
	PageNum         int       `json:"page_num"`
}

// Validate checks vector record invariants.
func (v *VectorRecord) Validate() error {
	if v.ChunkID == "" {
		return fmt.Errorf("vector record chunk ID cannot be empty")
	}
	if len(v.Embedding) == 0 {
		return fmt.Errorf("vector record must carry an embedding")
	}
	if v.DocID == "" {
		return fmt.Errorf("vector record doc ID cannot be empty")
	}
	return nil
}

// VectorHit is one scored match from the vector store.
type VectorHit struct {
	PK              string  `json:"pk"`
	Distance        float32 `json:"distance"`
	ChunkID         string  `json:"chunk_id"`
	DocID           string  `json:"doc_id"`
	DocType         DocType `json:"doc_type"`
	ProjectID       string  `json:"project_id,omitempty"`
	PermissionLevel int     `json:"permission_level"`
	PageNum         int     `json:"page_num"`
	Collection      string  `json:"collection"`
}
