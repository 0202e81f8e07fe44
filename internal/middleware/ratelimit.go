package middleware

import (
	"net/http"

	"golang.org/x/time/rate"

	"diskcatalog/internal/httputil"
)

// RateLimit throttles requests with two process-wide token buckets: one for
// reads (GET, HEAD) and one for writes. A limit of 0 disables that bucket.
func RateLimit(readRPS, writeRPS float64) func(http.Handler) http.Handler {
	read := newLimiter(readRPS)
	write := newLimiter(writeRPS)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := write
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				limiter = read
			}

			if limiter != nil && !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				httputil.RespondError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// newLimiter returns nil when rps is not positive
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
