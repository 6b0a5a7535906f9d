package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const webhookEventPrefix = "webhook_event:"

// RedisLocker hands out SETNX locks, one per key.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, "1", ttl).Result()
}

func (l *RedisLocker) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, key).Err()
}

// RedisEventStore remembers processed webhook event ids until their TTL runs out.
type RedisEventStore struct {
	client *redis.Client
}

func NewRedisEventStore(client *redis.Client) *RedisEventStore {
	return &RedisEventStore{client: client}
}

func (s *RedisEventStore) MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, webhookEventPrefix+id, time.Now().Unix(), ttl).Result()
}

func (s *RedisEventStore) Forget(ctx context.Context, id string) error {
	return s.client.Del(ctx, webhookEventPrefix+id).Err()
}
