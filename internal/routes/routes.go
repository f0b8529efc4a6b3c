package routes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/buildingpro/sentinel/internal/auth"
	"github.com/buildingpro/sentinel/internal/handlers"
	"github.com/buildingpro/sentinel/internal/middleware"
	"github.com/buildingpro/sentinel/internal/models"
	pkghttp "github.com/buildingpro/sentinel/pkg/http"
)

// Deps carries everything the router wires together.
type Deps struct {
	Auth        *handlers.AuthHandler
	Health      *handlers.HealthHandler
	Maintenance *handlers.MaintenanceHandler
	Tokens      *auth.TokenManager
	IPConfig    *pkghttp.IPConfig
	Logger      *slog.Logger
}

// New assembles the HTTP router.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger(deps.Logger, deps.IPConfig))

	r.Get("/health", deps.Health.Health)

	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.AuthRateLimit())

		r.Get("/challenge", deps.Auth.Challenge)
		r.Post("/register", deps.Auth.Register)
		r.Post("/verify-email", deps.Auth.VerifyEmail)
		r.Post("/login", deps.Auth.Login)
		r.Post("/login/code", deps.Auth.LoginCode)
		r.Post("/login/resend", deps.Auth.ResendLoginCode)
		r.Post("/session", deps.Auth.Session)
		r.Post("/password-reset", deps.Auth.RequestPasswordReset)
		r.Post("/password-reset/confirm", deps.Auth.ConfirmPasswordReset)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Authenticate(deps.Tokens))
		r.Use(middleware.RequireRole(string(models.RoleAdmin)))

		r.Post("/prune", deps.Maintenance.Prune)
	})

	return r
}
