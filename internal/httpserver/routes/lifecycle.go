package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/devdash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/devdash/internal/httpserver/handlers"
)

func init() { Register(registerLifecycle) }

func registerLifecycle(r chi.Router, d deps.Deps) {
	r.Group(func(r chi.Router) {
		r.Use(guarded(d, d.RequestTimeout)...)
		r.Post("/api/services/{name}/start", handlers.StartService(d))
		r.Post("/api/services/{name}/stop", handlers.StopService(d))
		r.Post("/api/stack/stop", handlers.StopAll(d))
		r.Post("/api/stack/down", handlers.Down(d))
	})

	r.With(guarded(d, d.StackUpTimeout)...).Post("/api/stack/up", handlers.Up(d))
	r.With(guarded(d, d.SeedTimeout)...).Post("/api/stack/seed", handlers.Seed(d))
}
