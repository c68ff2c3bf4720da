package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitMiddleware limits requests per client IP over a sliding window.
// chi's middleware.RealIP (applied globally) already sets r.RemoteAddr to the
// real IP, which is what httprate.KeyByIP reads.
func RateLimitMiddleware(limit int, window time.Duration) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(retryAfterSeconds(window))

	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", retryAfter)
			writeError(w, http.StatusTooManyRequests, ErrCodeRateLimitExceeded, "Too many requests, please try again later")
		}),
	)
}

func retryAfterSeconds(window time.Duration) int {
	if window <= 0 {
		return 1
	}
	return int(math.Ceil(window.Seconds()))
}
