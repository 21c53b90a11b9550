package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/tjfontaine/blueprint-api/internal/core/domain"
)

// NewLimiter returns a token bucket for the configured rate, or nil when
// rate limiting is disabled.
func NewLimiter(requestsPerSecond float64, burst int) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// RateLimitMiddleware rejects requests once the shared token bucket is empty.
// Every response carries x-ratelimit-limit-requests with the bucket size.
func RateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("x-ratelimit-limit-requests", strconv.Itoa(limiter.Burst()))

			if !limiter.Allow() {
				apiErr := domain.ErrRateLimit("too many requests")
				AddError(r.Context(), apiErr)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(apiErr.HTTPStatusCode())
				json.NewEncoder(w).Encode(map[string]any{"error": apiErr})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
