// Package cache memoizes ranked query results in Redis. Concurrent misses
// for the same key are collapsed into one computation with singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "search:"

// Backend is the key-value surface the cache needs. *redis.Client from
// pkg/redis satisfies it.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a cache over backend. m may be nil.
func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  logger.WithComponent("query-cache"),
	}
}

// Get returns the cached result for the analyzed query terms against the
// given snapshot generation. Backend failures and undecodable entries count
// as misses.
func (c *QueryCache) Get(ctx context.Context, indexPrefix string, generation uint64, terms []string, limit int) (*executor.SearchResult, bool) {
	key := BuildKey(indexPrefix, generation, terms, limit)
	data, found, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
	}
	if err != nil || !found {
		c.recordMiss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache entry undecodable", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, indexPrefix string, generation uint64, terms []string, limit int, result *executor.SearchResult) {
	key := BuildKey(indexPrefix, generation, terms, limit)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or runs compute once per key across
// concurrent callers. The bool reports a cache hit. generation must be read
// before compute runs, so a result from an older snapshot is never stored
// under a newer generation.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	indexPrefix string,
	generation uint64,
	terms []string,
	limit int,
	compute func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, indexPrefix, generation, terms, limit); ok {
		return result, true, nil
	}
	key := BuildKey(indexPrefix, generation, terms, limit)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, indexPrefix, generation, terms, limit, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// Invalidate drops every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.backend.DeleteByPrefix(ctx, keyPrefix)
	if err != nil {
		return deleted, fmt.Errorf("invalidating query cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BuildKey derives the cache key. Scores depend on the multiset of query
// terms, so terms are sorted but duplicates are kept. Each snapshot
// generation gets its own keys.
func BuildKey(indexPrefix string, generation uint64, terms []string, limit int) string {
	sorted := append([]string(nil), terms...)
	sort.Strings(sorted)
	raw := fmt.Sprintf("%s\x00gen=%d\x00%s\x00limit=%d", indexPrefix, generation, strings.Join(sorted, "\x1f"), limit)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, sum[:16])
}

func (c *QueryCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
