package drawing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"buildrag/internal/config"
	"buildrag/internal/logging"
	"buildrag/pkg/types"
)

// Bundle is a parsed drawing ready for extraction: per-page text plus any
// recognized tables.
type Bundle struct {
	Document *types.Document
	Pages    []string
	Tables   []Table
}

// Table is one recognized drawing table.
type Table struct {
	Caption string
	Rows    [][]string
}

// graphWriter is the slice of the graph repository the extractor writes
// through.
type graphWriter interface {
	CreateDocumentNode(ctx context.Context, doc *types.Document) error
	CreateComponent(ctx context.Context, docID string, e *types.GraphEntity) error
	CreateMaterial(ctx context.Context, docID string, e *types.GraphEntity) error
	CreateSpecification(ctx context.Context, docID string, e *types.GraphEntity) error
	CreateDimension(ctx context.Context, docID string, e *types.GraphEntity) error
	CreateRelation(ctx context.Context, rel *types.GraphRelation) error
}

// Enricher proposes additional entities from a text sample. Implementations
// may call an LLM; a nil Enricher disables the step.
type Enricher interface {
	Enrich(ctx context.Context, sample string) ([]types.GraphEntity, error)
}

// Extractor runs the drawing knowledge pipeline.
type Extractor struct {
	graph    graphWriter
	enricher Enricher
	cfg      *config.DrawingConfig
	logger   logging.Logger
}

// New creates an extractor. enricher may be nil.
func New(graph graphWriter, enricher Enricher, cfg *config.DrawingConfig) *Extractor {
	return &Extractor{
		graph:    graph,
		enricher: enricher,
		cfg:      cfg,
		logger:   logging.WithComponent("drawing"),
	}
}

// Checkpoint progress values per step.
const (
	progressBasic     = 20
	progressTables    = 40
	progressEnrich    = 55
	progressDedup     = 65
	progressRelations = 80
	progressSynced    = 100
)

// Process runs the extraction state machine over the bundle. Basic extraction
// failure fails the run; any later step failure is recorded and the run ends
// partial. The returned record always reflects what actually happened.
func (e *Extractor) Process(ctx context.Context, bundle *Bundle) (*types.DrawingProcessingRecord, error) {
	record := &types.DrawingProcessingRecord{
		DocumentID: bundle.Document.ID,
		Status:     types.DrawingPending,
		StartedAt:  time.Now().UTC(),
	}
	record.Status = types.DrawingProcessing

	var entities []types.GraphEntity
	degraded := false

	// Step 1: basic extraction. Without it there is nothing to process.
	err := e.step(record, "basic_extraction", progressBasic, func() error {
		for _, page := range bundle.Pages {
			entities = append(entities, ExtractEntities(page, "text")...)
		}
		return nil
	})
	if err != nil {
		record.Status = types.DrawingFailed
		record.Error = err.Error()
		e.finish(record)
		return record, fmt.Errorf("basic extraction failed: %w", err)
	}

	// Step 2: table pass over cell concatenations.
	if err := e.step(record, "table_extraction", progressTables, func() error {
		for _, table := range bundle.Tables {
			entities = append(entities, ExtractEntities(flattenTable(table), "table")...)
		}
		return nil
	}); err != nil {
		degraded = true
	}

	// Step 3: optional LLM enrichment.
	if e.cfg.LLMEnrichment && e.enricher != nil {
		if err := e.step(record, "llm_enrichment", progressEnrich, func() error {
			extra, err := e.enricher.Enrich(ctx, e.sample(bundle))
			if err != nil {
				return err
			}
			entities = append(entities, extra...)
			return nil
		}); err != nil {
			degraded = true
		}
	}

	// Step 4: dedup by variant collision key.
	_ = e.step(record, "dedup", progressDedup, func() error {
		entities = Dedupe(entities)
		return nil
	})
	record.EntityCount = len(entities)

	// Step 5: relation inference.
	var relations []types.GraphRelation
	if err := e.step(record, "relation_inference", progressRelations, func() error {
		relations = InferRelations(bundle.Document, entities)
		return nil
	}); err != nil {
		degraded = true
	}
	record.RelationCount = len(relations)

	// Step 6: graph write.
	if err := e.step(record, "graph_write", progressSynced, func() error {
		written, err := e.writeGraph(ctx, bundle.Document, entities, relations)
		record.RelationCount = written
		return err
	}); err != nil {
		degraded = true
	} else {
		record.GraphSynced = true
	}

	if degraded {
		record.Status = types.DrawingPartial
	} else {
		record.Status = types.DrawingCompleted
	}
	e.finish(record)

	e.logger.Info("drawing processed",
		"doc_id", bundle.Document.ID,
		"status", record.Status,
		"entities", record.EntityCount,
		"relations", record.RelationCount,
	)
	return record, nil
}

// step runs fn, records its timing and error on the record, and advances the
// checkpoint progress. The step error is returned for the caller's policy.
func (e *Extractor) step(record *types.DrawingProcessingRecord, name string, progress int, fn func() error) error {
	start := time.Now()
	err := fn()

	timing := types.StepTiming{Step: name, Duration: time.Since(start)}
	if err != nil {
		timing.Error = err.Error()
		e.logger.Warn("extraction step failed", "step", name, "doc_id", record.DocumentID, "error", err)
	}
	record.Steps = append(record.Steps, timing)
	_ = record.Advance(progress)
	return err
}

// writeGraph upserts nodes then edges. Node upserts are idempotent per
// (doc_id, entity key). A failing edge is logged and skipped so one bad row
// does not abort the sync; the successful edge count is returned.
func (e *Extractor) writeGraph(ctx context.Context, doc *types.Document, entities []types.GraphEntity, relations []types.GraphRelation) (int, error) {
	if err := e.graph.CreateDocumentNode(ctx, doc); err != nil {
		return 0, err
	}

	for i := range entities {
		entity := &entities[i]
		var err error
		switch entity.Kind {
		case types.EntityComponent:
			err = e.graph.CreateComponent(ctx, doc.ID, entity)
		case types.EntityMaterial:
			err = e.graph.CreateMaterial(ctx, doc.ID, entity)
		case types.EntitySpecification:
			err = e.graph.CreateSpecification(ctx, doc.ID, entity)
		case types.EntityDimension:
			err = e.graph.CreateDimension(ctx, doc.ID, entity)
		default:
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("failed to write %s: %w", entity.Key(), err)
		}
	}

	written := 0
	for i := range relations {
		if err := e.graph.CreateRelation(ctx, &relations[i]); err != nil {
			e.logger.Warn("skipping relation",
				"type", relations[i].Type,
				"from", relations[i].FromKey,
				"to", relations[i].ToKey,
				"error", err,
			)
			continue
		}
		written++
	}
	return written, nil
}

// sample takes the leading characters of the bundle text for enrichment.
func (e *Extractor) sample(bundle *Bundle) string {
	text := strings.Join(bundle.Pages, "\n")
	limit := e.cfg.SampleChars
	if limit <= 0 {
		limit = 2000
	}
	runes := []rune(text)
	if len(runes) > limit {
		runes = runes[:limit]
	}
	return string(runes)
}

func (e *Extractor) finish(record *types.DrawingProcessingRecord) {
	now := time.Now().UTC()
	record.FinishedAt = &now
}

func flattenTable(t Table) string {
	parts := make([]string, 0, len(t.Rows)+1)
	if t.Caption != "" {
		parts = append(parts, t.Caption)
	}
	for _, row := range t.Rows {
		parts = append(parts, strings.Join(row, " "))
	}
	return strings.Join(parts, "\n")
}
