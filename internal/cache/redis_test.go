package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildrag/internal/config"
	"buildrag/pkg/types"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewWithClient(client, config.CacheConfig{
		Enabled:         true,
		QueryTTL:        time.Hour,
		HistoryMaxItems: 3,
	})
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestQueryResultRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	result := &types.CachedQueryResult{
		Answer: "C30混凝土强度等级标准值为14.3N/mm2。",
		Sources: []types.AnswerSource{
			{ChunkID: "c1", DocID: "doc-1", Score: 0.012, Source: types.SourceBM25},
		},
	}
	c.CacheQueryResult(ctx, "C30 混凝土强度", result)

	got, ok := c.GetCachedQueryResult(ctx, "C30 混凝土强度")
	require.True(t, ok)
	assert.Equal(t, result, got)
}

func TestQueryFingerprintNormalizesWhitespace(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.CacheQueryResult(ctx, "  C30   混凝土强度  ", &types.CachedQueryResult{Answer: "a"})
	got, ok := c.GetCachedQueryResult(ctx, "C30 混凝土强度")
	require.True(t, ok)
	assert.Equal(t, "a", got.Answer)

	assert.Equal(t, Fingerprint("  a   b "), Fingerprint("a b"))
	assert.NotEqual(t, Fingerprint("a b"), Fingerprint("a c"))
}

func TestQueryResultExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.CacheQueryResult(ctx, "q", &types.CachedQueryResult{Answer: "a"})
	mr.FastForward(2 * time.Hour)

	_, ok := c.GetCachedQueryResult(ctx, "q")
	assert.False(t, ok)
}

func TestCacheMissAndServerDownReturnZeroValues(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, ok := c.GetCachedQueryResult(ctx, "never stored")
	assert.False(t, ok)

	mr.Close()
	_, ok = c.GetCachedQueryResult(ctx, "q")
	assert.False(t, ok)
	assert.Nil(t, c.GetSearchHistory(ctx, "u-1", 5))
	assert.Error(t, c.Ping(ctx))
}

func TestDisabledCacheIsNoop(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewWithClient(client, config.CacheConfig{Enabled: false})
	ctx := context.Background()

	c.CacheQueryResult(ctx, "q", &types.CachedQueryResult{Answer: "a"})
	_, ok := c.GetCachedQueryResult(ctx, "q")
	assert.False(t, ok)
	assert.Empty(t, mr.Keys())
}

func TestUserPermissionsRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.CacheUserPermissions(ctx, "u-1", []string{"doc:read", "agent:run"})
	perms, ok := c.GetUserPermissions(ctx, "u-1")
	require.True(t, ok)
	assert.Equal(t, []string{"doc:read", "agent:run"}, perms)

	mr.FastForward(2 * time.Hour)
	_, ok = c.GetUserPermissions(ctx, "u-1")
	assert.False(t, ok)
}

func TestSearchHistoryCappedNewestFirst(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	for _, q := range []string{"q1", "q2", "q3", "q4"} {
		c.AddSearchHistory(ctx, "u-1", q)
	}
	history := c.GetSearchHistory(ctx, "u-1", 10)
	assert.Equal(t, []string{"q4", "q3", "q2"}, history)
}

func TestHotQueriesRankedByFrequency(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		c.IncrementHotQuery(ctx, "C30 混凝土强度")
	}
	c.IncrementHotQuery(ctx, "钢筋保护层")

	hot := c.GetHotQueries(ctx, 10)
	require.Len(t, hot, 2)
	assert.Equal(t, "C30 混凝土强度", hot[0].Query)
	assert.Equal(t, 3.0, hot[0].Count)
	assert.Equal(t, "钢筋保护层", hot[1].Query)
}

func TestDeletePattern(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.CacheQueryResult(ctx, "q1", &types.CachedQueryResult{Answer: "a"})
	c.CacheQueryResult(ctx, "q2", &types.CachedQueryResult{Answer: "b"})
	c.CacheUserPermissions(ctx, "u-1", []string{"doc:read"})

	deleted := c.DeletePattern(ctx, queryKeyPrefix+"*")
	assert.Equal(t, 2, deleted)

	_, ok := c.GetCachedQueryResult(ctx, "q1")
	assert.False(t, ok)
	_, ok = c.GetUserPermissions(ctx, "u-1")
	assert.True(t, ok)
}
