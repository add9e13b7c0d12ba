package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "legalchat:msg:"

// RedisTracker shares seen IDs across server replicas.
type RedisTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTracker connects to the Redis server at url (redis://host:port/db).
func NewRedisTracker(ctx context.Context, url string, ttl time.Duration) (*RedisTracker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newRedisTracker(client, ttl), nil
}

func newRedisTracker(client *redis.Client, ttl time.Duration) *RedisTracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisTracker{client: client, ttl: ttl}
}

// MarkIfNew implements Tracker with SET NX EX.
func (t *RedisTracker) MarkIfNew(ctx context.Context, id string) (bool, error) {
	ok, err := t.client.SetNX(ctx, keyPrefix+id, 1, t.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark message %s: %w", id, err)
	}
	return ok, nil
}

// Close implements Tracker.
func (t *RedisTracker) Close() error {
	return t.client.Close()
}
