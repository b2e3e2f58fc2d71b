package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rl := NewRateLimiter(10, 15*time.Minute).WithClock(clock.Now)

	for i := 0; i < 10; i++ {
		if ok, _ := rl.Allow("user-1"); !ok {
			t.Fatalf("request %d rejected, want allowed", i+1)
		}
		clock.Advance(time.Second)
	}

	ok, retryAfter := rl.Allow("user-1")
	if ok {
		t.Fatal("11th request allowed, want rejected")
	}
	want := 15*time.Minute - 10*time.Second
	if retryAfter != want {
		t.Errorf("retryAfter = %v, want %v", retryAfter, want)
	}

	if ok, _ := rl.Allow("user-2"); !ok {
		t.Error("other key rejected, want allowed")
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rl := NewRateLimiter(2, time.Minute).WithClock(clock.Now)

	rl.Allow("k")
	clock.Advance(30 * time.Second)
	rl.Allow("k")
	if ok, _ := rl.Allow("k"); ok {
		t.Fatal("third request allowed inside window")
	}

	clock.Advance(31 * time.Second)
	if ok, _ := rl.Allow("k"); !ok {
		t.Fatal("request rejected after oldest entry expired")
	}
}

func TestRateLimiterRejectionDoesNotConsume(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rl := NewRateLimiter(1, time.Minute).WithClock(clock.Now)

	rl.Allow("k")
	for i := 0; i < 5; i++ {
		rl.Allow("k")
	}
	clock.Advance(61 * time.Second)
	if ok, _ := rl.Allow("k"); !ok {
		t.Fatal("rejected calls extended the window")
	}
}

func TestRateLimiterEvict(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rl := NewRateLimiter(5, time.Minute).WithClock(clock.Now)
	rl.Allow("a")
	rl.Allow("b")
	clock.Advance(2 * time.Minute)
	rl.Allow("b")

	rl.evict()
	if rl.Len() != 1 {
		t.Errorf("Len() = %d after eviction, want 1", rl.Len())
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rl := NewRateLimiter(1, time.Minute).WithClock(clock.Now)

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})
	h := RateLimit(rl, func(r *http.Request) string { return r.Header.Get("X-Key") }, "slow down")(next)

	do := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/ai-tutor/chat", nil)
		req.Header.Set("X-Key", key)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := do("a"); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", rec.Code)
	}
	rec := do("a")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != strconv.Itoa(60) {
		t.Errorf("Retry-After = %q, want 60", got)
	}
	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}

	// Empty key bypasses the limiter.
	for i := 0; i < 3; i++ {
		if rec := do(""); rec.Code != http.StatusOK {
			t.Fatalf("unkeyed status = %d, want 200", rec.Code)
		}
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"http://app.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/courses", nil)
	req.Header.Set("Origin", "http://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("expected credentials for explicit origin")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/courses", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unexpected CORS headers for unknown origin")
	}
}
