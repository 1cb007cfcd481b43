package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

// NewRouter assembles the caller-facing API.
func NewRouter(app *handlers.App, log zerolog.Logger, resolver middleware.SessionResolver, allowedOrigins []string) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(allowedOrigins))

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(resolver))

		r.Route("/v1/jobs", func(r chi.Router) {
			r.Post("/", app.SubmitJob)
			r.Get("/{uid}", app.JobStatus)
			r.Post("/{uid}/poll", app.PollJob)
			r.Post("/{uid}/hold", app.HoldJob)
			r.Post("/{uid}/confirm", app.ConfirmJob)
		})

		r.Post("/v1/captions", app.GenerateCaption)
	})

	return r
}

// NewWebhookRouter assembles the standalone webhook receiver.
func NewWebhookRouter(h *handlers.WebhookHandler, log zerolog.Logger) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.Logger(log))

	r.Get("/", h.Health)
	r.Get("/webhook", h.Health)
	r.Post("/webhook", h.Handle)

	return r
}
