package handlers

import (
	"net/http"
	"strconv"

	"github.com/MrSnakeDoc/devdash/internal/httpserver/deps"
	redisstore "github.com/MrSnakeDoc/devdash/internal/store/redis"
)

const defaultRunsLimit = 20

type runsResponse struct {
	Enabled bool             `json:"enabled"`
	Runs    []redisstore.Run `json:"runs"`
}

// Runs lists recent start-all runs, newest first (?limit=n).
func Runs(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Runs == nil {
			writeJSON(w, d.Logger, http.StatusOK, runsResponse{Runs: []redisstore.Run{}})
			return
		}

		limit := defaultRunsLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = n
		}

		runs, err := d.Runs.Recent(r.Context(), limit)
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, d.Logger, http.StatusOK, runsResponse{Enabled: true, Runs: runs})
	}
}
