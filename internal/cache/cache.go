// Package cache is an optional Redis-backed mirror of proxy health and
// a fast-path set of recently-seen item ids. Every operation degrades
// to a no-op when Redis is unavailable; the store and the in-memory
// proxy pool remain authoritative regardless.
package cache

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	proxyHealthPrefix = "proxyhealth:"
	seenItemsKey      = "seen:items"
	seenItemsTTL      = 24 * time.Hour
)

// Cache is the Redis-backed implementation. A nil *Cache (or one built
// with Connect on an unreachable address) behaves as Mode()=="in-memory"
// and every method becomes a safe no-op/always-miss.
type Cache struct {
	client *redis.Client
}

// Connect opens a Redis connection if addr is non-empty and reachable.
// On any failure it logs a warning and returns a Cache in degraded mode
// rather than an error: the cache is optional everywhere it is used.
func Connect(addr string) *Cache {
	if addr == "" {
		return &Cache{}
	}

	opts, err := redis.ParseURL(addr)
	if err != nil {
		log.Printf("⚠️ cache: invalid REDIS_URL, running in-memory only: %v", err)
		return &Cache{}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️ cache: redis unreachable, running in-memory only: %v", err)
		return &Cache{}
	}

	return &Cache{client: client}
}

// Mode reports "redis" or "in-memory" for the admin status endpoint.
func (c *Cache) Mode() string {
	if c != nil && c.client != nil {
		return "redis"
	}
	return "in-memory"
}

// Close releases the underlying connection, if any.
func (c *Cache) Close() error {
	if c != nil && c.client != nil {
		return c.client.Close()
	}
	return nil
}

// SetProxyHealth mirrors a proxy's health transition. Best-effort: errors
// are logged, never propagated, since the in-memory pool is authoritative.
func (c *Cache) SetProxyHealth(ctx context.Context, proxyURL string, healthy bool) {
	if c == nil || c.client == nil {
		return
	}
	val := "0"
	if healthy {
		val = "1"
	}
	if err := c.client.Set(ctx, proxyHealthPrefix+proxyURL, val, 0).Err(); err != nil {
		log.Printf("⚠️ cache: set proxy health failed: %v", err)
	}
}

// ProxyHealth reads back a mirrored health flag. ok is false on a cache
// miss or when running in degraded mode; callers must treat a miss as
// "unknown", never as "unhealthy".
func (c *Cache) ProxyHealth(ctx context.Context, proxyURL string) (healthy bool, ok bool) {
	if c == nil || c.client == nil {
		return false, false
	}
	v, err := c.client.Get(ctx, proxyHealthPrefix+proxyURL).Result()
	if err != nil {
		return false, false
	}
	return v == "1", true
}

// MightBeSeen is the dedupe hint: true means "maybe seen, consult the
// store". Neither result is authoritative on its own; the pipeline
// confirms against the store in both cases.
func (c *Cache) MightBeSeen(ctx context.Context, itemID string) bool {
	if c == nil || c.client == nil {
		return false
	}
	n, err := c.client.SIsMember(ctx, seenItemsKey, itemID).Result()
	if err != nil {
		return false
	}
	return n
}

// MarkSeen records an item id as persisted, going forward.
func (c *Cache) MarkSeen(ctx context.Context, itemID string) {
	if c == nil || c.client == nil {
		return
	}
	pipe := c.client.TxPipeline()
	pipe.SAdd(ctx, seenItemsKey, itemID)
	pipe.Expire(ctx, seenItemsKey, seenItemsTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("⚠️ cache: mark seen failed: %v", err)
	}
}
