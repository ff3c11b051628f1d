package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"jax-research-platform/internal/core"
)

// CachedPostgres fronts a Postgres Store with a Redis read-through cache for
// StreamCandles, the hot path Chandler calls on every already-cached span.
// Writes go to Postgres only; no cache entry is invalidated, so a cached
// candle range can be stale until its TTL expires.
type CachedPostgres struct {
	*Postgres
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedPostgres wraps pg with a Redis cache using the given client and
// per-entry TTL.
func NewCachedPostgres(pg *Postgres, client *redis.Client, ttl time.Duration) *CachedPostgres {
	return &CachedPostgres{Postgres: pg, redis: client, ttl: ttl}
}

func cacheKey(shard, key string, start, end core.Timestamp) string {
	h := xxhash.New()
	_, _ = h.Write([]byte(shard))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key))
	buf := make([]byte, 16)
	putInt64(buf[0:8], start)
	putInt64(buf[8:16], end)
	_, _ = h.Write(buf)
	return "candles:" + shard + ":" + key + ":" + formatHash(h.Sum64())
}

func putInt64(b []byte, v int64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func formatHash(h uint64) string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hextable[h&0xf]
		h >>= 4
	}
	return string(buf)
}

// StreamCandles serves from Redis when present, else falls through to
// Postgres and populates the cache.
func (c *CachedPostgres) StreamCandles(ctx context.Context, shard, key string, start, end core.Timestamp) ([]core.Candle, error) {
	k := cacheKey(shard, key, start, end)

	if raw, err := c.redis.Get(ctx, k).Bytes(); err == nil {
		var candles []core.Candle
		if jsonErr := json.Unmarshal(raw, &candles); jsonErr == nil {
			return candles, nil
		}
	}

	candles, err := c.Postgres.StreamCandles(ctx, shard, key, start, end)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(candles); err == nil {
		c.redis.Set(ctx, k, raw, c.ttl)
	}
	return candles, nil
}

// StoreCandlesAndSpan writes through to Postgres. It does not attempt
// fine-grained invalidation of overlapping range queries; callers that
// need freshly-written data before ttl expiry should bypass the cache by
// reading from Postgres directly (Chandler never re-reads a span it just
// wrote within the same stream_candles call).
func (c *CachedPostgres) StoreCandlesAndSpan(ctx context.Context, shard, key string, candles []core.Candle, span core.Span) error {
	return c.Postgres.StoreCandlesAndSpan(ctx, shard, key, candles, span)
}

var _ Store = (*CachedPostgres)(nil)
