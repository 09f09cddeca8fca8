package middleware

import (
	"net"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/ratelimit"
)

// RateLimit rejects requests with 429 once the caller identified by key has
// used up its allowance.
func RateLimit(limiter *ratelimit.Limiter, key func(*http.Request) string) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(max(1, int(limiter.Window().Seconds())))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(key(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", retryAfter)
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP keys requests by remote address without the port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
