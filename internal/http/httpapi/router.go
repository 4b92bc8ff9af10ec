package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/kali23041/3d-gsplat/internal/http/handlers"
	"github.com/kali23041/3d-gsplat/internal/infra"
	"github.com/kali23041/3d-gsplat/internal/middleware"
)

// NewRouter wires the API surface behind the middleware chain.
func NewRouter(app *handlers.App, cfg *infra.Config, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(log),
		middleware.CORS(cfg.CORSAllowedOrigins),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
	)

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(cfg.JWTSecret))

		r.Route("/v1/jobs", func(r chi.Router) {
			r.Post("/", app.CreateJob)
			r.Get("/", app.ListJobs)
			r.Get("/{id}", app.GetJob)
			r.Patch("/{id}", app.RenameJob)
			r.Delete("/{id}", app.DeleteJob)
		})
		r.Get("/v1/stats/dashboard", app.DashboardStats)
		r.Get("/v1/events", app.Events)
	})

	return r
}
