package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/srlee0408/voguedrop-sub005/internal/http/handlers"
	"github.com/srlee0408/voguedrop-sub005/internal/middleware"
)

// NewRouter wires every route. The webhook endpoint sits outside the
// authenticated API group: the vendor authenticates with its signature
// headers, not a session token.
func NewRouter(app *handlers.App, logger zerolog.Logger, countryLookup middleware.CountryLookup) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.Logger(logger))

	r.Get("/v1/healthz", app.Health)

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/fal", app.FalWebhook)
		r.Options("/fal", app.FalWebhookPreflight)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.CORS(app.Cfg.AllowedOrigins))
		r.Use(middleware.RateLimit(app.Cfg.RateLimitPerMin, time.Minute))
		r.Use(middleware.I18N("en", countryLookup))
		r.Use(middleware.AuthJWT(app.Cfg.JWTSecret))

		r.Post("/generate", app.Generate)
		r.Get("/jobs", app.JobsList)
		r.Get("/jobs/{job_id}", app.JobGet)
		r.Get("/jobs/{job_id}/poll", app.JobPoll)
		r.Get("/effects", app.EffectsList)
	})

	return r
}
