package httpx

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit rejects callers over their limit with 429. When the limiter
// itself fails the request passes if failOpen is set and gets 503 otherwise.
func RateLimit(l Limiter, logger *slog.Logger, failOpen bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := l.Allow(r.Context(), clientKey(r))
			if err != nil {
				if logger != nil {
					logger.Warn("rate limiter error", "err", err)
				}
				if failOpen {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "rate limiter unavailable", http.StatusServiceUnavailable)
				return
			}
			if !ok {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter is the single-instance fixed-window limiter.
type RateLimiter struct {
	limit    int
	window   time.Duration
	now      func() time.Time
	mu       sync.Mutex
	visitors map[string]*visitor
	pruned   time.Time
}

type visitor struct {
	count     int
	resetTime time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		window:   window,
		now:      time.Now,
		visitors: map[string]*visitor{},
	}
}

func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.prune(now)

	v := rl.visitors[key]
	if v == nil || now.After(v.resetTime) {
		rl.visitors[key] = &visitor{
			count:     1,
			resetTime: now.Add(rl.window),
		}
		return true, nil
	}

	if v.count >= rl.limit {
		return false, nil
	}
	v.count++
	return true, nil
}

// prune drops expired windows at most once per window.
func (rl *RateLimiter) prune(now time.Time) {
	if now.Sub(rl.pruned) < rl.window {
		return
	}
	rl.pruned = now
	for key, v := range rl.visitors {
		if now.After(v.resetTime) {
			delete(rl.visitors, key)
		}
	}
}

func clientKey(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		parts := strings.Split(ip, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
