package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/devdash/internal/domain"
	"github.com/MrSnakeDoc/devdash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/devdash/internal/lifecycle"
	"github.com/MrSnakeDoc/devdash/internal/logger"
	redisstore "github.com/MrSnakeDoc/devdash/internal/store/redis"
)

const recordTimeout = 2 * time.Second

type stopAllResponse struct {
	lifecycle.StopReport
	AllStopped bool   `json:"complete"`
	Error      string `json:"error,omitempty"`
	Category   string `json:"category,omitempty"`
}

// StopAll stops every controllable service. A partial failure answers 207
// with the per-service report.
func StopAll(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := d.Commander.StopAll(r.Context())
		refreshAfterMutation(d)

		resp := stopAllResponse{StopReport: report, AllStopped: report.Complete()}
		if err == nil {
			writeJSON(w, d.Logger, http.StatusOK, resp)
			return
		}
		if !errors.Is(err, domain.ErrPartialFailure) {
			writeError(w, d, err)
			return
		}
		status, category := classify(err)
		resp.Error, resp.Category = err.Error(), category
		writeJSON(w, d.Logger, status, resp)
	}
}

type downResponse struct {
	Down bool `json:"down"`
}

// Down tears down the whole group.
func Down(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Commander.DownAll(r.Context()); err != nil {
			writeError(w, d, err)
			return
		}
		refreshAfterMutation(d)
		writeJSON(w, d.Logger, http.StatusOK, downResponse{Down: true})
	}
}

type upResponse struct {
	RunID    string                  `json:"run_id"`
	Outcome  domain.ReadinessOutcome `json:"outcome"`
	Error    string                  `json:"error,omitempty"`
	Category string                  `json:"category,omitempty"`
}

// Up brings the group up and blocks until the readiness gate resolves.
// Every run is appended to the run history when one is configured.
func Up(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := d.Now()
		outcome, err := d.Commander.StartAll(r.Context())
		run := redisstore.NewRun(started, d.Now(), outcome, err)
		recordRun(r.Context(), d, run)
		refreshAfterMutation(d)

		resp := upResponse{RunID: run.ID, Outcome: outcome}
		status := http.StatusOK
		if err != nil {
			status, resp.Category = classify(err)
			resp.Error = err.Error()
		}
		writeJSON(w, d.Logger, status, resp)
	}
}

func recordRun(ctx context.Context, d deps.Deps, run redisstore.Run) {
	if d.Runs == nil {
		return
	}
	// The run is recorded even when the caller has gone away.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := d.Runs.Record(ctx, run); err != nil {
		d.Logger.Warn("failed to record run", logger.String("run_id", run.ID), logger.Error(err))
	}
}

type seedResponse struct {
	lifecycle.SeedResult
	Error    string `json:"error,omitempty"`
	Category string `json:"category,omitempty"`
}

// Seed runs the configured seed job once.
func Seed(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := d.Commander.Seed(r.Context())
		if err == nil {
			writeJSON(w, d.Logger, http.StatusOK, seedResponse{SeedResult: res})
			return
		}
		status, category := classify(err)
		if status >= http.StatusInternalServerError {
			d.Logger.Warn("seed request failed", logger.Error(err))
		}
		writeJSON(w, d.Logger, status, seedResponse{SeedResult: res, Error: err.Error(), Category: category})
	}
}
