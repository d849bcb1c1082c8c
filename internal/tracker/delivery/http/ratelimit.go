package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tair/price-tracker/pkg/logger"
)

// RateLimiter is a Redis sliding-window limiter for expensive routes. Adding a
// product fetches a page and a manual check fetches every page.
type RateLimiter struct {
	redis       *redis.Client
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

// NewRateLimiter allows maxRequests per window for each caller
func NewRateLimiter(client *redis.Client, maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redis:       client,
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// Middleware limits next per token subject, or per client IP for anonymous callers
func (rl *RateLimiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identifier := "ip:" + clientIP(r)
		if subject, ok := r.Context().Value(SubjectKey).(string); ok && subject != "" {
			identifier = "sub:" + subject
		}

		allowed, remaining, resetTime, err := rl.checkLimit(r.Context(), identifier)
		if err != nil {
			// Redis down: serve the request rather than fail it
			logger.Error(r.Context()).Err(err).Str("identifier", identifier).Msg("Rate limiter error")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.maxRequests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

		if !allowed {
			logger.Warn(r.Context()).
				Str("identifier", identifier).
				Int("limit", rl.maxRequests).
				Msg("Rate limit exceeded")

			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			respondJSON(w, http.StatusTooManyRequests, Response{
				Success: false,
				Error:   fmt.Sprintf("Too many requests. Try again in %v", rl.window),
			})
			return
		}

		next.ServeHTTP(w, r)
	}
}

func (rl *RateLimiter) checkLimit(ctx context.Context, identifier string) (bool, int, time.Time, error) {
	key := "price-tracker:ratelimit:" + identifier
	now := rl.now()
	windowStart := now.Add(-rl.window)

	pipe := rl.redis.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	})
	pipe.Expire(ctx, key, rl.window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, time.Time{}, err
	}

	count := int(countCmd.Val())
	remaining := rl.maxRequests - count - 1
	if remaining < 0 {
		remaining = 0
	}
	return count < rl.maxRequests, remaining, now.Add(rl.window), nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
