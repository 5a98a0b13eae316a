// Package cache is the best-effort Redis layer: query result cache, user
// permissions, search history and hot-query counters. Every read tolerates a
// miss or an unreachable server by returning its zero value and logging a
// warning; callers never see a cache error.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"buildrag/internal/config"
	"buildrag/internal/logging"
	"buildrag/pkg/types"
)

// Key prefixes. Hot-query counters carry no TTL.
const (
	queryKeyPrefix      = "buildrag:query:"
	permissionKeyPrefix = "buildrag:perms:"
	historyKeyPrefix    = "buildrag:history:"
	hotQueriesKey       = "buildrag:hot_queries"
)

const (
	defaultQueryTTL      = 6 * time.Hour
	defaultPermissionTTL = time.Hour
	defaultHistoryTTL    = 30 * 24 * time.Hour
	defaultHistoryItems  = 100
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Cache wraps one Redis client.
type Cache struct {
	client  *redis.Client
	cfg     config.CacheConfig
	logger  logging.Logger
	enabled bool
}

// New connects a cache client. A disabled cache is a valid no-op handle.
func New(redisCfg *config.RedisConfig, cacheCfg *config.CacheConfig) *Cache {
	cfg := config.CacheConfig{
		Enabled:         cacheCfg.Enabled,
		QueryTTL:        cacheCfg.QueryTTL,
		PermissionTTL:   cacheCfg.PermissionTTL,
		HistoryTTL:      cacheCfg.HistoryTTL,
		HistoryMaxItems: cacheCfg.HistoryMaxItems,
	}
	if cfg.QueryTTL <= 0 {
		cfg.QueryTTL = defaultQueryTTL
	}
	if cfg.PermissionTTL <= 0 {
		cfg.PermissionTTL = defaultPermissionTTL
	}
	if cfg.HistoryTTL <= 0 {
		cfg.HistoryTTL = defaultHistoryTTL
	}
	if cfg.HistoryMaxItems <= 0 {
		cfg.HistoryMaxItems = defaultHistoryItems
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	return &Cache{
		client:  client,
		cfg:     cfg,
		logger:  logging.WithComponent("cache"),
		enabled: cfg.Enabled,
	}
}

// NewWithClient wraps an existing client; used by tests with miniredis.
func NewWithClient(client *redis.Client, cfg config.CacheConfig) *Cache {
	c := &Cache{
		client:  client,
		cfg:     cfg,
		logger:  logging.WithComponent("cache"),
		enabled: cfg.Enabled,
	}
	if c.cfg.QueryTTL <= 0 {
		c.cfg.QueryTTL = defaultQueryTTL
	}
	if c.cfg.PermissionTTL <= 0 {
		c.cfg.PermissionTTL = defaultPermissionTTL
	}
	if c.cfg.HistoryTTL <= 0 {
		c.cfg.HistoryTTL = defaultHistoryTTL
	}
	if c.cfg.HistoryMaxItems <= 0 {
		c.cfg.HistoryMaxItems = defaultHistoryItems
	}
	return c
}

// Fingerprint is the md5 of the whitespace-normalized query.
func Fingerprint(query string) string {
	normalized := whitespaceRun.ReplaceAllString(strings.TrimSpace(query), " ")
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// GetCachedQueryResult looks up a previously cached answer.
func (c *Cache) GetCachedQueryResult(ctx context.Context, query string) (*types.CachedQueryResult, bool) {
	if !c.enabled {
		return nil, false
	}
	raw, err := c.client.Get(ctx, queryKeyPrefix+Fingerprint(query)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("query cache read failed", "error", err)
		return nil, false
	}
	var result types.CachedQueryResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		c.logger.Warn("query cache entry corrupt", "error", err)
		return nil, false
	}
	return &result, true
}

// CacheQueryResult stores an answer under the query fingerprint.
func (c *Cache) CacheQueryResult(ctx context.Context, query string, result *types.CachedQueryResult) {
	if !c.enabled || result == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("query cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, queryKeyPrefix+Fingerprint(query), raw, c.cfg.QueryTTL).Err(); err != nil {
		c.logger.Warn("query cache write failed", "error", err)
	}
}

// CacheUserPermissions stores a user's permission tokens.
func (c *Cache) CacheUserPermissions(ctx context.Context, userID string, permissions []string) {
	if !c.enabled {
		return
	}
	raw, err := json.Marshal(permissions)
	if err != nil {
		c.logger.Warn("permission cache encode failed", "user_id", userID, "error", err)
		return
	}
	if err := c.client.Set(ctx, permissionKeyPrefix+userID, raw, c.cfg.PermissionTTL).Err(); err != nil {
		c.logger.Warn("permission cache write failed", "user_id", userID, "error", err)
	}
}

// GetUserPermissions loads a user's cached permission tokens.
func (c *Cache) GetUserPermissions(ctx context.Context, userID string) ([]string, bool) {
	if !c.enabled {
		return nil, false
	}
	raw, err := c.client.Get(ctx, permissionKeyPrefix+userID).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("permission cache read failed", "user_id", userID, "error", err)
		return nil, false
	}
	var permissions []string
	if err := json.Unmarshal([]byte(raw), &permissions); err != nil {
		c.logger.Warn("permission cache entry corrupt", "user_id", userID, "error", err)
		return nil, false
	}
	return permissions, true
}

// AddSearchHistory prepends a query to the user's capped history list.
func (c *Cache) AddSearchHistory(ctx context.Context, userID, query string) {
	if !c.enabled {
		return
	}
	key := historyKeyPrefix + userID
	pipe := c.client.Pipeline()
	pipe.LPush(ctx, key, query)
	pipe.LTrim(ctx, key, 0, int64(c.cfg.HistoryMaxItems-1))
	pipe.Expire(ctx, key, c.cfg.HistoryTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("search history write failed", "user_id", userID, "error", err)
	}
}

// GetSearchHistory returns the user's most recent queries, newest first.
func (c *Cache) GetSearchHistory(ctx context.Context, userID string, limit int) []string {
	if !c.enabled {
		return nil
	}
	if limit <= 0 || limit > c.cfg.HistoryMaxItems {
		limit = c.cfg.HistoryMaxItems
	}
	items, err := c.client.LRange(ctx, historyKeyPrefix+userID, 0, int64(limit-1)).Result()
	if err != nil {
		c.logger.Warn("search history read failed", "user_id", userID, "error", err)
		return nil
	}
	return items
}

// IncrementHotQuery bumps the frequency counter for a query.
func (c *Cache) IncrementHotQuery(ctx context.Context, query string) {
	if !c.enabled {
		return
	}
	normalized := whitespaceRun.ReplaceAllString(strings.TrimSpace(query), " ")
	if normalized == "" {
		return
	}
	if err := c.client.ZIncrBy(ctx, hotQueriesKey, 1, normalized).Err(); err != nil {
		c.logger.Warn("hot query increment failed", "error", err)
	}
}

// HotQuery is one entry of the frequency ranking.
type HotQuery struct {
	Query string  `json:"query"`
	Count float64 `json:"count"`
}

// GetHotQueries returns the most frequent queries, highest count first.
func (c *Cache) GetHotQueries(ctx context.Context, limit int) []HotQuery {
	if !c.enabled {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}
	members, err := c.client.ZRevRangeWithScores(ctx, hotQueriesKey, 0, int64(limit-1)).Result()
	if err != nil {
		c.logger.Warn("hot query read failed", "error", err)
		return nil
	}
	out := make([]HotQuery, 0, len(members))
	for _, m := range members {
		query, ok := m.Member.(string)
		if !ok {
			continue
		}
		out = append(out, HotQuery{Query: query, Count: m.Score})
	}
	return out
}

// DeletePattern removes all keys matching the glob pattern.
func (c *Cache) DeletePattern(ctx context.Context, pattern string) int {
	if !c.enabled {
		return 0
	}
	var deleted int
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err == nil {
			deleted++
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("pattern delete failed", "pattern", pattern, "error", err)
	}
	return deleted
}

// Ping checks connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unreachable: %w", err)
	}
	return nil
}

// Info returns server diagnostics.
func (c *Cache) Info(ctx context.Context) (map[string]string, error) {
	raw, err := c.client.Info(ctx, "server", "memory", "stats").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read redis info: %w", err)
	}
	info := make(map[string]string)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if key, value, ok := strings.Cut(line, ":"); ok {
			info[key] = value
		}
	}
	return info, nil
}

// Close releases the client.
func (c *Cache) Close() error {
	return c.client.Close()
}
