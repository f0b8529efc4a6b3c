package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/buildingpro/sentinel/internal/auth"
	pkghttp "github.com/buildingpro/sentinel/pkg/http"
)

type contextKey string

const claimsKey contextKey = "claims"

// tokenValidator checks a signed access token.
type tokenValidator interface {
	Validate(tokenString string) (*auth.Claims, error)
}

// Authenticate requires a valid Bearer access token and stores its
// claims on the request context.
func Authenticate(validator tokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				pkghttp.WriteUnauthorized(w, "missing authorization header")
				return
			}

			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				pkghttp.WriteUnauthorized(w, "malformed authorization header")
				return
			}

			claims, err := validator.Validate(tokenString)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "invalid or expired access token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose authenticated role differs.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				pkghttp.WriteUnauthorized(w, "authentication required")
				return
			}
			if claims.Role != role {
				pkghttp.WriteForbidden(w, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext returns the authenticated claims, if any.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}
