package kvstore

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/nuvora/concierge/internal/logger"
)

// Redis stores each key under prefix+key. Clear and SizeBytes scan the
// prefix so one store never touches another store's namespace.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "concierge:"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if err != redis.Nil {
			logger.L.Warn("redis get failed", "key", key, "error", err)
		}
		return "", false
	}
	return v, true
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.prefix+key, value, 0).Err()
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

func (r *Redis) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (r *Redis) SizeBytes(ctx context.Context) (int64, error) {
	var total int64
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		v, err := r.client.Get(ctx, k).Result()
		if err != nil {
			if err == redis.Nil {
				continue // expired between scan and get
			}
			return 0, err
		}
		total += int64(len(k) - len(r.prefix) + len(v))
	}
	return total, iter.Err()
}
