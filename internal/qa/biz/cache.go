package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/logger"

	"github.com/kart-io/anchora/pkg/utils/json"
)

// QueryCache caches full chat results in Redis keyed by the question
// and source filter. Cache failures degrade to a miss; the pipeline
// never fails because Redis is down.
type QueryCache struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewQueryCache creates a query cache.
func NewQueryCache(client *goredis.Client, prefix string, ttl time.Duration) *QueryCache {
	if prefix == "" {
		prefix = "anchora:query:"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &QueryCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *QueryCache) key(question string, sources []string) string {
	h := sha256.Sum256([]byte(question + "\x00" + strings.Join(sources, "\x00")))
	return c.prefix + hex.EncodeToString(h[:])
}

// Get returns the cached result for a question, or false on miss.
func (c *QueryCache) Get(ctx context.Context, question string, sources []string) (*ChatResult, bool) {
	data, err := c.client.Get(ctx, c.key(question, sources)).Bytes()
	if err != nil {
		if err != goredis.Nil {
			logger.Warnw("query cache read failed", "error", err)
		}
		return nil, false
	}

	var result ChatResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warnw("query cache entry corrupt, dropping", "error", err)
		return nil, false
	}
	return &result, true
}

// Set stores a chat result.
func (c *QueryCache) Set(ctx context.Context, question string, sources []string, result *ChatResult) {
	data, err := json.Marshal(result)
	if err != nil {
		logger.Warnw("query cache marshal failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key(question, sources), data, c.ttl).Err(); err != nil {
		logger.Warnw("query cache write failed", "error", err)
	}
}

// InvalidateAll drops every cached query result. Called after index
// mutations so answers never cite deleted or re-indexed content.
func (c *QueryCache) InvalidateAll(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("query cache invalidation failed", "key", iter.Val(), "error", err)
		}
	}
	if err := iter.Err(); err != nil {
		logger.Warnw("query cache scan failed", "error", err)
	}
}
