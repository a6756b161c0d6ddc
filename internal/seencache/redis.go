// Package seencache provides a Redis-backed cache of recently ingested
// posting URLs. It fronts the database upsert; the unique constraint on
// job_url remains the source of truth.
package seencache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "jobscout:seen:"

// Cache remembers posting URLs for a bounded time.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New parses redisURL, verifies connectivity and returns a Cache.
func New(ctx context.Context, redisURL string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Cache{client: client, ttl: ttl}, nil
}

// Seen reports whether the URL was marked within the cache TTL.
func (c *Cache) Seen(ctx context.Context, url string) (bool, error) {
	n, err := c.client.Exists(ctx, keyPrefix+url).Result()
	if err != nil {
		return false, fmt.Errorf("seen lookup: %w", err)
	}
	return n > 0, nil
}

// Mark records the URLs with the configured TTL.
func (c *Cache) Mark(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, u := range urls {
		pipe.Set(ctx, keyPrefix+u, 1, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	return nil
}
