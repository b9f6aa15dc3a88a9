package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"ballotbox/pkg/requestcontext"
)

// Limit describes one named throttle. Name partitions keys so the global and
// the per-endpoint limiters never share buckets.
type Limit struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Middleware rejects requests over the limit with 429 before the handler
// runs. Keys are per client IP. The store failing open is deliberate: an
// unreachable Redis must not take voting down.
func Middleware(store BucketStore, limit Limit, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := limit.Name + ":" + clientKey(r)

			result, err := store.Allow(r.Context(), key, limit.Limit, limit.Window)
			if err != nil {
				logger.ErrorContext(r.Context(), "rate limit store failure, failing open",
					"error", err,
					"limiter", limit.Name,
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				retryAfter := max(int(time.Until(result.ResetAt).Seconds()), 1)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"too_many_requests","error_description":"rate limit exceeded, try again later"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if ip := requestcontext.ClientIP(r.Context()); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
