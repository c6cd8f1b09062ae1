package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeCache is an in-memory cache.Client used to drive the limiter without
// Redis.
type fakeCache struct {
	counts  map[string]int64
	expired map[string]time.Duration
	failing bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{counts: make(map[string]int64), expired: make(map[string]time.Duration)}
}

func (f *fakeCache) Incr(ctx context.Context, key string) (int64, error) {
	if f.failing {
		return 0, errors.New("redis unavailable")
	}
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if f.failing {
		return errors.New("redis unavailable")
	}
	f.expired[key] = ttl
	return nil
}

func limitedHandler(cache *fakeCache, limit int) http.Handler {
	return RateLimiter(cache, limit, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func hit(handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/store/max-order-qty", nil)
	req.RemoteAddr = remoteAddr
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	cache := newFakeCache()
	handler := limitedHandler(cache, 2)

	rr := hit(handler, "10.0.0.1:1234")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("X-RateLimit-Remaining"))

	rr = hit(handler, "10.0.0.1:1234")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

	rr = hit(handler, "10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
}

func TestRateLimiter_CountsPerIP(t *testing.T) {
	cache := newFakeCache()
	handler := limitedHandler(cache, 1)

	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "10.0.0.1:5678").Code, "port must not change the key")
	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.2:1234").Code, "different IP has its own window")
}

func TestRateLimiter_ExpiresWindowOnFirstHit(t *testing.T) {
	cache := newFakeCache()
	handler := limitedHandler(cache, 5)

	hit(handler, "10.0.0.1:1234")
	hit(handler, "10.0.0.1:1234")

	assert.Equal(t, time.Minute, cache.expired["rate-limit:10.0.0.1"])
	assert.Len(t, cache.expired, 1, "only the first request of a window sets the expiry")
}

func TestRateLimiter_FailsOpenWhenRedisDown(t *testing.T) {
	cache := newFakeCache()
	cache.failing = true
	handler := limitedHandler(cache, 1)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.1:1234").Code)
	}
}
