package types

import (
	"fmt"
	"time"
)

// EntityKind identifies a knowledge-graph node variant.
type EntityKind string

const (
	EntityDocument      EntityKind = "Document"
	EntityComponent     EntityKind = "Component"
	EntityMaterial      EntityKind = "Material"
	EntitySpecification EntityKind = "Specification"
	EntityDimension     EntityKind = "Dimension"
)

// RelationType identifies a knowledge-graph edge variant.
type RelationType string

const (
	RelationBelongsTo    RelationType = "BELONGS_TO"
	RelationUsesMaterial RelationType = "USES_MATERIAL"
	RelationHasDimension RelationType = "HAS_DIMENSION"
	RelationRefersTo     RelationType = "REFERS_TO"
	RelationConnectedTo  RelationType = "CONNECTED_TO"
)

// ComponentType classifies a structural component.
type ComponentType string

const (
	ComponentBeam       ComponentType = "beam"
	ComponentColumn     ComponentType = "column"
	ComponentSlab       ComponentType = "slab"
	ComponentWall       ComponentType = "wall"
	ComponentFoundation ComponentType = "foundation"
)

// GraphEntity is one node in the knowledge graph. Which fields are set
// depends on Kind.
type GraphEntity struct {
	Kind EntityKind `json:"kind"`

	// Component fields.
	Code          string        `json:"code,omitempty"`
	ComponentType ComponentType `json:"component_type,omitempty"`

	// Material fields.
	MaterialType string `json:"material_type,omitempty"`
	Grade        string `json:"grade,omitempty"`

	// Dimension fields.
	DimType string `json:"dim_type,omitempty"`
	Value   string `json:"value,omitempty"`
	Unit    string `json:"unit,omitempty"`

	// Document / common fields.
	DocID  string            `json:"doc_id,omitempty"`
	Name   string            `json:"name,omitempty"`
	Source string            `json:"source,omitempty"`
	Props  map[string]string `json:"props,omitempty"`
}

// Key returns the dedup collision key for the entity variant: component code,
// material grade, specification code, or dimension (type,value).
func (e *GraphEntity) Key() string {
	switch e.Kind {
	case EntityComponent:
		return string(e.Kind) + ":" + e.Code
	case EntityMaterial:
		return string(e.Kind) + ":" + e.Grade
	case EntitySpecification:
		return string(e.Kind) + ":" + e.Code
	case EntityDimension:
		return string(e.Kind) + ":" + e.DimType + ":" + e.Value
	default:
		return string(e.Kind) + ":" + e.DocID
	}
}

// Label returns the human-readable identifier used in rendered graph context.
func (e *GraphEntity) Label() string {
	switch e.Kind {
	case EntityComponent, EntitySpecification:
		return e.Code
	case EntityMaterial:
		return e.Grade
	case EntityDimension:
		return e.Value
	default:
		return e.Name
	}
}

// GraphRelation is one directed edge in the knowledge graph.
type GraphRelation struct {
	Type     RelationType      `json:"type"`
	FromKey  string            `json:"from_key"`
	ToKey    string            `json:"to_key"`
	FromKind EntityKind        `json:"from_kind"`
	ToKind   EntityKind        `json:"to_kind"`
	Props    map[string]string `json:"props,omitempty"`
}

// DrawingStatus tracks the drawing-extraction state machine.
type DrawingStatus string

const (
	DrawingPending    DrawingStatus = "pending"
	DrawingProcessing DrawingStatus = "processing"
	DrawingCompleted  DrawingStatus = "completed"
	DrawingPartial    DrawingStatus = "partial"
	DrawingFailed     DrawingStatus = "failed"
)

// StepTiming records wall-clock duration and outcome of one extraction step.
type StepTiming struct {
	Step     string        `json:"step"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// DrawingProcessingRecord is the durable state of one drawing extraction run.
type DrawingProcessingRecord struct {
	DocumentID    string        `json:"document_id"`
	Status        DrawingStatus `json:"status"`
	Progress      int           `json:"progress"`
	Steps         []StepTiming  `json:"steps"`
	EntityCount   int           `json:"entity_count"`
	RelationCount int           `json:"relation_count"`
	GraphSynced   bool          `json:"graph_synced"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// Advance moves the progress forward, never backwards.
func (r *DrawingProcessingRecord) Advance(progress int) error {
	if progress < r.Progress {
		return fmt.Errorf("progress must be monotone: %d < %d", progress, r.Progress)
	}
	if progress > 100 {
		progress = 100
	}
	r.Progress = progress
	return nil
}
