// Package redis provides a thin wrapper around go-redis/v9 that publishes
// expanded forms: per-form statistics hashes, a suspicion leaderboard and an
// occurrence counter.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/config"
)

// Key suffixes under the configured prefix.
const (
	StatsKey       = "stats:"
	LeaderboardKey = "by-suspicion"
	OccurrenceKey  = "occurrences"
)

// FormScore is one expanded form with its counts.
type FormScore struct {
	Form      string
	Suspicion float64
	OKCount   int
	ErrCount  int
}

// Client wraps a go-redis client.
type Client struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewClient creates a Redis client and verifies the connection with a PING.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewFromClient(rdb, cfg.KeyPrefix, cfg.TTL), nil
}

// NewFromClient wraps an existing go-redis client.
func NewFromClient(rdb redis.UniversalClient, prefix string, ttl time.Duration) *Client {
	return &Client{rdb: rdb, prefix: prefix, ttl: ttl}
}

// StoreForms writes forms in one MULTI/EXEC pipeline. A form's statistics
// hash is overwritten; the leaderboard keeps the form's score and the
// occurrence counter is incremented once per form.
func (c *Client) StoreForms(ctx context.Context, forms []FormScore) error {
	if len(forms) == 0 {
		return nil
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, f := range forms {
			key := c.prefix + StatsKey + f.Form
			pipe.HSet(ctx, key,
				"suspicion", f.Suspicion,
				"ok", f.OKCount,
				"err", f.ErrCount,
			)
			if c.ttl > 0 {
				pipe.Expire(ctx, key, c.ttl)
			}
			pipe.ZAdd(ctx, c.prefix+LeaderboardKey, redis.Z{Score: f.Suspicion, Member: f.Form})
			pipe.HIncrBy(ctx, c.prefix+OccurrenceKey, f.Form, 1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing %d forms: %w", len(forms), err)
	}
	return nil
}

// TopForms returns up to n forms ordered by decreasing suspicion.
func (c *Client) TopForms(ctx context.Context, n int64) ([]redis.Z, error) {
	return c.rdb.ZRevRangeWithScores(ctx, c.prefix+LeaderboardKey, 0, n-1).Result()
}

// FlushByPattern scans for keys matching the glob pattern and deletes them,
// returning the number of keys removed.
func (c *Client) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("deleting key %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scanning pattern %s: %w", pattern, err)
	}
	return deleted, nil
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping sends a PING to Redis and returns any error.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
