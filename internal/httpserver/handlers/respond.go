package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/devdash/internal/domain"
	"github.com/MrSnakeDoc/devdash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/devdash/internal/lifecycle"
	"github.com/MrSnakeDoc/devdash/internal/logger"
)

// StatusClientClosedRequest is the non-standard code used when the caller went away.
const StatusClientClosedRequest = 499

type errorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category"`
}

func writeJSON(w http.ResponseWriter, log logger.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("failed to write response", logger.Error(err))
	}
}

func writeError(w http.ResponseWriter, d deps.Deps, err error) {
	status, category := classify(err)
	if status >= http.StatusInternalServerError {
		d.Logger.Warn("request failed", logger.String("category", category), logger.Error(err))
	}
	writeJSON(w, d.Logger, status, errorResponse{Error: err.Error(), Category: category})
}

// classify maps an error category to an HTTP status.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, lifecycle.ErrSeedNotConfigured):
		return http.StatusNotImplemented, "not_configured"
	case errors.Is(err, lifecycle.ErrDatabaseDown):
		return http.StatusConflict, "precondition"
	case errors.Is(err, domain.ErrToolUnavailable):
		return http.StatusServiceUnavailable, "tool_unavailable"
	case errors.Is(err, domain.ErrPartialFailure):
		return http.StatusMultiStatus, "partial_failure"
	case errors.Is(err, domain.ErrCancelled), errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "cancelled"
	case errors.Is(err, domain.ErrTimedOut), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timed_out"
	case errors.Is(err, domain.ErrCommandFailed):
		return http.StatusBadGateway, "command_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
