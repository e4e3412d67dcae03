package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/devdash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/devdash/internal/logger"
)

type refreshResponse struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}

// Refresh asks the status watcher for an immediate poll.
func Refresh(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Watcher == nil {
			writeJSON(w, d.Logger, http.StatusConflict, refreshResponse{Message: "status watcher disabled"})
			return
		}

		if !d.Watcher.Trigger() {
			d.Logger.Debug("status refresh already pending", logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, d.Logger, http.StatusTooManyRequests, refreshResponse{Message: "refresh already pending"})
			return
		}

		d.Logger.Info("manual status refresh triggered", logger.String("remote_ip", r.RemoteAddr))
		writeJSON(w, d.Logger, http.StatusAccepted, refreshResponse{Triggered: true, Message: "refresh triggered"})
	}
}

// refreshAfterMutation nudges the watcher so the cached status follows a lifecycle call.
func refreshAfterMutation(d deps.Deps) {
	if d.Watcher != nil {
		d.Watcher.Trigger()
	}
}
