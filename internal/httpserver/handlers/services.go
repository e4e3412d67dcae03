package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/devdash/internal/httpserver/deps"
)

type serviceActionResponse struct {
	Service string `json:"service"`
	Action  string `json:"action"`
	Done    bool   `json:"done"`
}

// StartService starts one controllable service.
func StartService(d deps.Deps) http.HandlerFunc {
	return serviceAction(d, "start", d.Commander.StartOne)
}

// StopService stops one controllable service.
func StopService(d deps.Deps) http.HandlerFunc {
	return serviceAction(d, "stop", d.Commander.StopOne)
}

func serviceAction(d deps.Deps, action string, op func(ctx context.Context, name string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if err := op(r.Context(), name); err != nil {
			writeError(w, d, err)
			return
		}
		refreshAfterMutation(d)
		writeJSON(w, d.Logger, http.StatusAccepted, serviceActionResponse{Service: name, Action: action, Done: true})
	}
}
