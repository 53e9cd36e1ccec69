package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis is a fixed-window counter shared across replicas: one redis
// key per (client, window) bucket, expired shortly after the window
// ends.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr string, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Redis{client: client}, nil
}

func (r *Redis) Increment(ctx context.Context, key string, windowSize time.Duration) (int64, time.Time, error) {
	start := time.Now().Truncate(windowSize)
	bucket := fmt.Sprintf("ratelimit:%s:%d", key, start.Unix())

	count, err := r.client.Incr(ctx, bucket).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("incr error: %w", err)
	}

	// First hit in the bucket sets the expiry; a second past the
	// window end keeps the key alive long enough for stragglers.
	if count == 1 {
		if err := r.client.Expire(ctx, bucket, windowSize+time.Second).Err(); err != nil {
			return count, start.Add(windowSize), fmt.Errorf("expire error: %w", err)
		}
	}

	return count, start.Add(windowSize), nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
