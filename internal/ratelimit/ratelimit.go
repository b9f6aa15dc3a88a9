// Package ratelimit throttles request bursts before they reach the core. A
// permissive global limit covers everything; stricter limits guard the
// sensitive endpoints (login, vote).
package ratelimit

import (
	"context"
	"time"
)

// Result describes one admission decision.
type Result struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// BucketStore tracks request counts per key within a window. The memory
// implementation is a sliding window; the Redis one a fixed window shared
// across instances.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
	Reset(ctx context.Context, key string) error
}
