package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/devdash/internal/httpserver/deps"
)

type componentStatus struct {
	OK         bool   `json:"ok"`
	Mode       string `json:"mode,omitempty"`
	LastUpdate string `json:"last_update,omitempty"`
	Impact     string `json:"impact,omitempty"`
	Error      string `json:"error,omitempty"`
}

type readyzResponse struct {
	Ready      bool                       `json:"ready"`
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Readyz reports whether devdash itself can serve. Stack services being down
// does not make devdash unready; a missing run-history store degrades it.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"watcher": checkWatcher(d),
			"redis":   checkRedis(r.Context(), d),
		}

		mode := "optimal"
		if !components["redis"].OK && components["redis"].Mode != "disabled" {
			mode = "degraded"
		}

		writeJSON(w, d.Logger, http.StatusOK, readyzResponse{
			Ready:      true,
			Mode:       mode,
			Components: components,
		})
	}
}

func checkWatcher(d deps.Deps) componentStatus {
	if d.MemoryIndex == nil {
		return componentStatus{OK: true, Mode: "disabled"}
	}
	last := d.MemoryIndex.GetLastUpdate()
	if last.IsZero() {
		return componentStatus{OK: false, Mode: "warming_up", LastUpdate: "never"}
	}
	return componentStatus{OK: true, Mode: "polling", LastUpdate: last.UTC().Format(time.RFC3339)}
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.Runs == nil {
		return componentStatus{OK: false, Mode: "disabled", Impact: "run-history-disabled"}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.Runs.Ping(ctx); err != nil {
		return componentStatus{OK: false, Mode: "degraded", Impact: "run-history-disabled", Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: "optimal", Impact: "run-history-enabled"}
}
