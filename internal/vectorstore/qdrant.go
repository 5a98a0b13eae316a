// Package vectorstore wraps the Qdrant vector database behind a typed client
// that owns the three authority-tier collections (standards, projects,
// contracts) and exposes filtered ANN search plus tiered hierarchical search.
package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"buildrag/internal/config"
	"buildrag/internal/logging"
	"buildrag/pkg/types"
)

// Metric is the configured distance metric of the collections.
type Metric string

const (
	MetricIP     Metric = "IP"
	MetricL2     Metric = "L2"
	MetricCosine Metric = "COSINE"
)

// Ascending reports whether smaller distances are better for this metric.
func (m Metric) Ascending() bool { return m == MetricL2 }

// ParseMetric normalizes a configured metric string. Unknown values fall back
// to inner product, the collection default.
func ParseMetric(s string) Metric {
	switch Metric(strings.ToUpper(s)) {
	case MetricL2:
		return MetricL2
	case MetricCosine:
		return MetricCosine
	default:
		return MetricIP
	}
}

// Filter narrows a vector search. Zero values mean unconstrained.
type Filter struct {
	DocType         types.DocType
	DocID           string
	ProjectID       string
	PermissionLevel int // ceiling; 0 means unconstrained
}

// Store is the typed Qdrant client.
type Store struct {
	client    *qdrant.Client
	cfg       *config.QdrantConfig
	metric    Metric
	tierOrder []string
	logger    logging.Logger
}

// New creates a store from config without connecting.
func New(cfg *config.QdrantConfig) *Store {
	return &Store{
		cfg:       cfg,
		metric:    ParseMetric(cfg.Metric),
		tierOrder: cfg.TierOrder,
		logger:    logging.WithComponent("vectorstore"),
	}
}

// Initialize connects to Qdrant and ensures every tier collection exists.
func (s *Store) Initialize(ctx context.Context) error {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   s.cfg.Host,
		Port:   s.cfg.Port,
		APIKey: s.cfg.APIKey,
		UseTLS: s.cfg.UseTLS,
	})
	if err != nil {
		return fmt.Errorf("failed to create qdrant client: %w", err)
	}
	s.client = client

	for _, collection := range s.tierOrder {
		if err := s.EnsureCollection(ctx, collection); err != nil {
			return err
		}
	}
	s.logger.Info("vector store initialized", "tiers", s.tierOrder, "metric", s.metric)
	return nil
}

// EnsureCollection creates the collection if it does not exist.
func (s *Store) EnsureCollection(ctx context.Context, collection string) error {
	exists, err := s.HasCollection(ctx, collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.cfg.Dimension),
			Distance: s.distance(),
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", collection, err)
	}
	s.logger.Info("created collection", "collection", collection, "dimension", s.cfg.Dimension)
	return nil
}

// HasCollection reports whether the collection exists.
func (s *Store) HasCollection(ctx context.Context, collection string) (bool, error) {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == collection {
			return true, nil
		}
	}
	return false, nil
}

// DropCollection removes the collection entirely.
func (s *Store) DropCollection(ctx context.Context, collection string) error {
	if err := s.client.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", collection, err)
	}
	s.logger.Info("dropped collection", "collection", collection)
	return nil
}

// Insert upserts records in one batch, waiting for the write to flush, and
// returns the generated vector primary keys in input order.
func (s *Store) Insert(ctx context.Context, collection string, records []types.VectorRecord) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}

	pks := make([]string, len(records))
	points := make([]*qdrant.PointStruct, len(records))
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid record %d: %w", i, err)
		}
		if len(records[i].Embedding) != s.cfg.Dimension {
			return nil, fmt.Errorf("record %d: embedding dimension %d, collection expects %d",
				i, len(records[i].Embedding), s.cfg.Dimension)
		}
		pks[i] = uuid.New().String()
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pks[i]),
			Vectors: qdrant.NewVectors(records[i].Embedding...),
			Payload: qdrant.NewValueMap(recordPayload(&records[i])),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", collection, err)
	}

	s.logger.Debug("inserted vectors", "collection", collection, "count", len(points))
	return pks, nil
}

// Search runs filtered ANN search for each query vector and returns one
// ranked hit list per query. Distances are returned unchanged; the caller
// interprets direction by metric.
func (s *Store) Search(ctx context.Context, collection string, vectors [][]float32, topK int, filter *Filter) ([][]types.VectorHit, error) {
	if topK <= 0 || len(vectors) == 0 {
		return make([][]types.VectorHit, len(vectors)), nil
	}

	results := make([][]types.VectorHit, len(vectors))
	for i, vector := range vectors {
		hits, err := s.searchOne(ctx, collection, vector, topK, filter)
		if err != nil {
			return nil, err
		}
		results[i] = hits
	}
	return results, nil
}

func (s *Store) searchOne(ctx context.Context, collection string, vector []float32, topK int, filter *Filter) ([]types.VectorHit, error) {
	start := time.Now()
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         buildFilter(filter),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", collection, err)
	}

	hits := make([]types.VectorHit, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		hits = append(hits, types.VectorHit{
			PK:              pointIDString(p.GetId()),
			Distance:        p.GetScore(),
			ChunkID:         payloadString(payload, "chunk_id"),
			DocID:           payloadString(payload, "doc_id"),
			DocType:         types.DocType(payloadString(payload, "doc_type")),
			ProjectID:       payloadString(payload, "project_id"),
			PermissionLevel: int(payloadInt(payload, "permission_level")),
			PageNum:         int(payloadInt(payload, "page_num")),
			Collection:      collection,
		})
	}

	s.logger.Debug("vector search completed",
		"collection", collection,
		"hits", len(hits),
		"took_ms", time.Since(start).Milliseconds(),
	)
	return hits, nil
}

// Delete removes all points matching the filter and returns how many were
// matched.
func (s *Store) Delete(ctx context.Context, collection string, filter *Filter) (int, error) {
	qf := buildFilter(filter)
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         qf,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points in %s: %w", collection, err)
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: qf},
		},
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", collection, err)
	}

	s.logger.Info("deleted vectors", "collection", collection, "count", count)
	return int(count), nil
}

// HealthCheck verifies connectivity.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("vector store not initialized")
	}
	if _, err := s.client.ListCollections(ctx); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

// Close releases the client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Store) distance() qdrant.Distance {
	switch s.metric {
	case MetricL2:
		return qdrant.Distance_Euclid
	case MetricCosine:
		return qdrant.Distance_Cosine
	default:
		return qdrant.Distance_Dot
	}
}

// recordPayload maps a record to its stored payload. Every field buildFilter
// can condition on must be present here.
func recordPayload(r *types.VectorRecord) map[string]any {
	return map[string]any{
		"chunk_id":         r.ChunkID,
		"doc_id":           r.DocID,
		"doc_type":         string(r.DocType),
		"project_id":       r.ProjectID,
		"permission_level": int64(r.PermissionLevel),
		"page_num":         int64(r.PageNum),
	}
}

func buildFilter(f *Filter) *qdrant.Filter {
	if f == nil {
		return nil
	}
	var must []*qdrant.Condition
	if f.DocType != "" {
		must = append(must, qdrant.NewMatch("doc_type", string(f.DocType)))
	}
	if f.DocID != "" {
		must = append(must, qdrant.NewMatch("doc_id", f.DocID))
	}
	if f.ProjectID != "" {
		must = append(must, qdrant.NewMatch("project_id", f.ProjectID))
	}
	if f.PermissionLevel > 0 {
		must = append(must, qdrant.NewRange("permission_level", &qdrant.Range{
			Lte: qdrant.PtrOf(float64(f.PermissionLevel)),
		}))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func pointIDString(id *qdrant.PointId) string {
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func payloadInt(payload map[string]*qdrant.Value, key string) int64 {
	if v, ok := payload[key]; ok {
		return v.GetIntegerValue()
	}
	return 0
}
