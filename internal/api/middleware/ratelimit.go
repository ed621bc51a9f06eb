// SPDX-License-Identifier: MIT

package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/ManuGH/dosemux/internal/log"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	// RequestLimit is the number of requests allowed per client and window.
	RequestLimit int
	// WindowSize defaults to one minute.
	WindowSize time.Duration
	// KeyFunc identifies the client. Nil keys by remote IP.
	KeyFunc func(r *http.Request) (string, error)
}

// RateLimit limits requests per client with httprate's sliding window
// counter. Rejected requests get a JSON 429 in the API error format.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = time.Minute
	}
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}
	retryAfter := strconv.Itoa(int(math.Ceil(cfg.WindowSize.Seconds())))

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logger := log.WithComponentFromContext(r.Context(), "http")
			logger.Debug().
				Str(log.FieldEvent, "request.rate_limited").
				Str(log.FieldPath, r.URL.Path).
				Msg("rate limit exceeded")

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", retryAfter)
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":      "rate_limited",
				"detail":     "too many requests, retry later",
				"request_id": log.RequestIDFromContext(r.Context()),
			})
		}),
	)
}
