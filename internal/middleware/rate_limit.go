package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	pkghttp "github.com/buildingpro/sentinel/pkg/http"
)

// RateLimit applies a general per-IP request budget.
func RateLimit(requestLimit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "too many requests")
		}),
	)
}

// AuthRateLimit is the tighter budget for the authentication endpoints.
// The brute-force guard handles per-identity throttling; this keeps raw
// request floods off the database entirely.
func AuthRateLimit() func(http.Handler) http.Handler {
	return RateLimit(30, time.Minute)
}
