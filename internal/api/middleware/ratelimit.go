package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"order-limit-service/internal/pkg/cache"
)

// RateLimiter enforces a fixed-window per-IP request limit backed by Redis.
// The counter key is created on the first request of a window and expires
// with the window. When Redis is unreachable the request is allowed through:
// the quota endpoints are read-only and availability wins over throttling.
func RateLimiter(client cache.Client, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			key := "rate-limit:" + ip

			count, err := client.Incr(r.Context(), key)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				// First hit of this window owns the expiry.
				_ = client.Expire(r.Context(), key, window)
			}

			if count > int64(limit) {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			remaining := int64(limit) - count
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			next.ServeHTTP(w, r)
		})
	}
}
