package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

type memoryRateLimitStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	failWith error
}

func newMemoryRateLimitStore() *memoryRateLimitStore {
	return &memoryRateLimitStore{attempts: map[string][]time.Time{}}
}

func (s *memoryRateLimitStore) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	cutoff := reference.Add(-window)
	kept := s.attempts[identifier][:0]
	for _, at := range s.attempts[identifier] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	s.attempts[identifier] = kept
	return nil
}

func (s *memoryRateLimitStore) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, s.failWith
	}
	count := 0
	cutoff := reference.Add(-window)
	for _, at := range s.attempts[identifier] {
		if at.After(cutoff) && !at.After(reference) {
			count++
		}
	}
	return count, nil
}

func (s *memoryRateLimitStore) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.attempts[identifier] = append(s.attempts[identifier], at)
	return nil
}

func (s *memoryRateLimitStore) OldestAttempt(_ context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return time.Time{}, false, s.failWith
	}
	cutoff := reference.Add(-window)
	var oldest time.Time
	found := false
	for _, at := range s.attempts[identifier] {
		if at.After(cutoff) && (!found || at.Before(oldest)) {
			oldest = at
			found = true
		}
	}
	return oldest, found, nil
}

func rateLimitedEngine(t *testing.T, limiter *RateLimiter, rule RateLimitRule) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.POST("/login", limiter.RateLimit(rule, nil), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return engine
}

func fireLogin(engine *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "203.0.113.7:51000"
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitEnforcesLimit(t *testing.T) {
	store := newMemoryRateLimitStore()
	limiter := NewRateLimiter(store, zaptest.NewLogger(t))
	engine := rateLimitedEngine(t, limiter, RateLimitRule{
		Name:   "login_ip",
		Limit:  3,
		Window: time.Minute,
	})

	for i := 0; i < 3; i++ {
		if rec := fireLogin(engine); rec.Code != http.StatusOK {
			t.Fatalf("request %d: got status %d", i+1, rec.Code)
		}
	}

	rec := fireLogin(engine)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("fourth request: got status %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("429 response missing Retry-After header")
	}
}

func TestRateLimitWindowSlides(t *testing.T) {
	store := newMemoryRateLimitStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base

	limiter := NewRateLimiter(store, zaptest.NewLogger(t)).WithClock(func() time.Time { return current })
	engine := rateLimitedEngine(t, limiter, RateLimitRule{
		Name:   "login_ip",
		Limit:  1,
		Window: time.Minute,
	})

	if rec := fireLogin(engine); rec.Code != http.StatusOK {
		t.Fatalf("first request: got status %d", rec.Code)
	}
	if rec := fireLogin(engine); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request inside window: got status %d", rec.Code)
	}

	current = base.Add(2 * time.Minute)
	if rec := fireLogin(engine); rec.Code != http.StatusOK {
		t.Fatalf("request after window: got status %d", rec.Code)
	}
}

func TestRateLimitRejectCallbackWritesResponse(t *testing.T) {
	store := newMemoryRateLimitStore()
	limiter := NewRateLimiter(store, zaptest.NewLogger(t))

	var gotRetryAfter time.Duration
	reject := func(c *gin.Context, retryAfter time.Duration) {
		gotRetryAfter = retryAfter
		c.JSON(http.StatusOK, gin.H{"status": gin.H{"code": "01"}})
		c.Abort()
	}

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	handlerHits := 0
	engine.POST("/login", limiter.RateLimit(RateLimitRule{
		Name:   "login_ip",
		Limit:  1,
		Window: time.Minute,
	}, reject), func(c *gin.Context) {
		handlerHits++
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	if rec := fireLogin(engine); rec.Code != http.StatusOK {
		t.Fatalf("first request: got status %d", rec.Code)
	}

	rec := fireLogin(engine)
	if rec.Code != http.StatusOK {
		t.Fatalf("rejected request: got status %d, want callback-written 200", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `"code":"01"`) {
		t.Fatalf("rejected request body = %s, want status code 01", body)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("rejected request missing Retry-After header")
	}
	if gotRetryAfter <= 0 {
		t.Fatalf("callback retryAfter = %v, want positive", gotRetryAfter)
	}
	if handlerHits != 1 {
		t.Fatalf("handler ran %d times, want 1", handlerHits)
	}
}

func TestRateLimitFailsOpenOnStoreError(t *testing.T) {
	store := newMemoryRateLimitStore()
	store.failWith = errors.New("redis unavailable")

	limiter := NewRateLimiter(store, zaptest.NewLogger(t))
	engine := rateLimitedEngine(t, limiter, RateLimitRule{
		Name:   "login_ip",
		Limit:  1,
		Window: time.Minute,
	})

	if rec := fireLogin(engine); rec.Code != http.StatusOK {
		t.Fatalf("store failure should not block requests: got status %d", rec.Code)
	}
}

func TestRateLimitDisabledWithoutStore(t *testing.T) {
	limiter := NewRateLimiter(nil, zaptest.NewLogger(t))
	engine := rateLimitedEngine(t, limiter, RateLimitRule{
		Name:   "login_ip",
		Limit:  1,
		Window: time.Minute,
	})

	for i := 0; i < 5; i++ {
		if rec := fireLogin(engine); rec.Code != http.StatusOK {
			t.Fatalf("request %d without store: got status %d", i+1, rec.Code)
		}
	}
}
