package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBucketStore is a fixed-window store shared across instances. INCR and
// EXPIRE run in one pipeline so the window key always carries a TTL.
type RedisBucketStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisBucketStore(client redis.Cmdable) *RedisBucketStore {
	return &RedisBucketStore{client: client, prefix: "ratelimit:"}
}

func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := time.Now()
	windowKey := fmt.Sprintf("%s%s:%d", s.prefix, key, now.UnixNano()/int64(window))

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("ratelimit incr: %w", err)
	}

	count := int(incr.Val())
	resetAt := now.Truncate(window).Add(window)
	if count > limit {
		return &Result{Allowed: false, Limit: limit, ResetAt: resetAt}, nil
	}
	return &Result{
		Allowed:   true,
		Remaining: limit - count,
		Limit:     limit,
		ResetAt:   resetAt,
	}, nil
}

func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	iter := s.client.Scan(ctx, 0, s.prefix+key+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("ratelimit reset: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("ratelimit reset scan: %w", err)
	}
	return nil
}
