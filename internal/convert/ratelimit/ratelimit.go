// Package ratelimit implements the per-endpoint, per-client-IP fixed-window
// limiter. Built directly on the same *redis.Client the cache layer uses:
// an atomic INCR plus a conditional EXPIRE is the textbook fixed-window
// primitive over a KV store, generalising the teacher's MessageQueue
// in-memory semaphore idiom to a counter that holds across gateway
// replicas.
package ratelimit

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const window = 60 * time.Second

// Limits are requests-per-window for each rate-limited endpoint family.
var Limits = map[string]int64{
	"main":    60,
	"extract": 10,
	"batch":   5,
	"async":   10,
}

type Limiter struct {
	client *redis.Client
}

func New(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// Decision is the outcome of a single Allow check.
type Decision struct {
	Allowed   bool
	Remaining int64
}

// Allow performs the atomic increment-and-fetch for endpoint+clientIP,
// setting a 60s expiry only on the window's first hit (INCR never resets
// an existing TTL, so the window runs from that first hit). INCR and
// EXPIRE are two separate commands: if the EXPIRE after the first INCR
// fails or never runs, the key is left with no expiry.
func (l *Limiter) Allow(ctx context.Context, endpoint, clientIP string) (Decision, error) {
	limit, ok := Limits[endpoint]
	if !ok {
		limit = Limits["main"]
	}

	key := "ratelimit:" + endpoint + ":" + clientIP

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, window).Err(); err != nil {
			return Decision{}, err
		}
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: count <= limit, Remaining: remaining}, nil
}

// ClientIP selects the client address per the fixed header precedence:
// CF-Connecting-IP, X-Real-IP, the leftmost hop of X-Forwarded-For, else
// "unknown".
func ClientIP(r *http.Request) string {
	if v := r.Header.Get("CF-Connecting-IP"); v != "" {
		return strings.TrimSpace(v)
	}
	if v := r.Header.Get("X-Real-IP"); v != "" {
		return strings.TrimSpace(v)
	}
	if v := r.Header.Get("X-Forwarded-For"); v != "" {
		parts := strings.Split(v, ",")
		return strings.TrimSpace(parts[0])
	}
	return "unknown"
}
