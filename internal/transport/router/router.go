package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/trunov/convo/internal/transport/handler"
)

func NewRouter(h *handler.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/formats", h.Formats)
		r.Post("/conversions", h.Convert)
		r.Post("/passthrough", h.Passthrough)

		r.Get("/artifacts/{id}", h.Download)
		r.Delete("/artifacts/{id}", h.Release)

		r.Post("/jobs", h.SubmitJob)
		r.Get("/jobs/{id}", h.Job)
	})

	return r
}
