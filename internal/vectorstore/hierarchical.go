package vectorstore

import (
	"context"
	"sort"

	"buildrag/pkg/types"
)

// tierSearcher is the single-collection search the tiered walk runs on.
type tierSearcher interface {
	searchTier(ctx context.Context, collection string, vector []float32, topK int, filter *Filter) ([]types.VectorHit, error)
}

func (s *Store) searchTier(ctx context.Context, collection string, vector []float32, topK int, filter *Filter) ([]types.VectorHit, error) {
	return s.searchOne(ctx, collection, vector, topK, filter)
}

// HierarchicalSearch walks the tier collections in authority order
// (standards, then projects, then contracts), stopping as soon as topK hits
// have accumulated. Later tiers are never queried once the budget is filled.
// The combined result is sorted by distance in the metric's direction and
// truncated to topK.
func (s *Store) HierarchicalSearch(ctx context.Context, vector []float32, topK int, filter *Filter) ([]types.VectorHit, error) {
	return hierarchicalSearch(ctx, s, s.tierOrder, s.metric, vector, topK, filter)
}

func hierarchicalSearch(ctx context.Context, searcher tierSearcher, tiers []string, metric Metric, vector []float32, topK int, filter *Filter) ([]types.VectorHit, error) {
	if topK <= 0 {
		return nil, nil
	}

	var hits []types.VectorHit
	for _, tier := range tiers {
		if len(hits) >= topK {
			break
		}
		tierHits, err := searcher.searchTier(ctx, tier, vector, topK-len(hits), filter)
		if err != nil {
			return nil, err
		}
		hits = append(hits, tierHits...)
	}

	sortHits(hits, metric)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// sortHits orders hits best-first for the metric, ties broken by chunk ID so
// output is stable.
func sortHits(hits []types.VectorHit, metric Metric) {
	asc := metric.Ascending()
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			if asc {
				return hits[i].Distance < hits[j].Distance
			}
			return hits[i].Distance > hits[j].Distance
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
}
