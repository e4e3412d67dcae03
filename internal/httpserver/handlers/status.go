package handlers

import (
	"net/http"
	"strconv"

	"github.com/MrSnakeDoc/devdash/internal/domain"
	"github.com/MrSnakeDoc/devdash/internal/httpserver/deps"
)

type statusResponse struct {
	domain.Snapshot
	Cached bool `json:"cached"`
}

// Status polls every registered service. With ?cached=true the watcher's
// last snapshot is served instead when there is one.
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cached, _ := strconv.ParseBool(r.URL.Query().Get("cached")); cached && d.MemoryIndex != nil {
			if snap, ok := d.MemoryIndex.Snapshot(); ok {
				writeJSON(w, d.Logger, http.StatusOK, statusResponse{Snapshot: snap, Cached: true})
				return
			}
		}

		snap := d.Commander.Status(r.Context())
		writeJSON(w, d.Logger, http.StatusOK, statusResponse{Snapshot: snap})
	}
}
