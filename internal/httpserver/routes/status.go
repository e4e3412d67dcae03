package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/devdash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/devdash/internal/httpserver/handlers"
)

func init() { Register(registerStatus) }

func registerStatus(r chi.Router, d deps.Deps) {
	r.Get("/api/status", handlers.Status(d))
	r.Get("/api/runs", handlers.Runs(d))
	r.With(guarded(d, 0)...).Post("/api/status/refresh", handlers.Refresh(d))
}
