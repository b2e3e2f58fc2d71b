package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter is a sliding-log limiter: a key may make at most limit calls in
// any trailing window.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
}

// NewRateLimiter creates a limiter. Call Run to evict idle keys.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// WithClock replaces the limiter's time source. Used by tests.
func (r *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	r.now = now
	return r
}

// Allow records a call for key if it is within the limit. When the call is
// rejected nothing is recorded and retryAfter is how long until the oldest
// call in the window expires.
func (r *RateLimiter) Allow(key string) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	recent := r.prune(r.requests[key], now)

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false, recent[0].Add(r.window).Sub(now)
	}

	r.requests[key] = append(recent, now)
	return true, 0
}

func (r *RateLimiter) prune(times []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-r.window)
	var fresh []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			fresh = append(fresh, t)
		}
	}
	return fresh
}

// Run periodically removes expired keys until ctx is cancelled.
func (r *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.evict()
		}
	}
}

func (r *RateLimiter) evict() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for key, times := range r.requests {
		fresh := r.prune(times, now)
		if len(fresh) == 0 {
			delete(r.requests, key)
		} else {
			r.requests[key] = fresh
		}
	}
}

// Len returns the number of tracked keys.
func (r *RateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// KeyFunc derives the limiter key for a request. An empty key bypasses the limiter.
type KeyFunc func(*http.Request) string

// RateLimit rejects requests over the limiter's budget with 429 and a
// Retry-After header. Rejected requests never reach next.
func RateLimit(limiter *RateLimiter, key KeyFunc, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}
			ok, retryAfter := limiter.Allow(k)
			if !ok {
				slog.Warn("rate limit exceeded", "key", k, "path", r.URL.Path, "retry_after", retryAfter)
				WriteTooManyRequests(w, retryAfter, message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RetryAfterSeconds rounds d up to whole seconds, minimum 1.
func RetryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// WriteTooManyRequests writes a 429 JSON error with Retry-After.
func WriteTooManyRequests(w http.ResponseWriter, retryAfter time.Duration, message string) {
	w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds(retryAfter)))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
