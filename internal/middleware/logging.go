package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	pkghttp "github.com/buildingpro/sentinel/pkg/http"
)

// RequestLogger logs one structured line per request. Bodies are never
// logged; auth payloads carry secrets.
func RequestLogger(logger *slog.Logger, ipConfig *pkghttp.IPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("ip", pkghttp.ExtractClientIP(r, ipConfig)),
				slog.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}
