package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/terra-clan/pathway-engine/internal/health"
	"github.com/terra-clan/pathway-engine/internal/readiness"
	"github.com/terra-clan/pathway-engine/internal/tracker"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondServiceError maps tracker and engine errors to status codes.
// Anything unrecognised is logged and reported as a 500 that does not leak
// the cause.
func respondServiceError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, tracker.ErrActivityNotFound):
		respondError(w, http.StatusNotFound, "not_found", "activity not found")
	case errors.Is(err, tracker.ErrTaskNotFound):
		respondError(w, http.StatusNotFound, "not_found", "task not found")
	case errors.Is(err, tracker.ErrEventNotFound):
		respondError(w, http.StatusNotFound, "not_found", "event not found")
	case errors.Is(err, tracker.ErrProfileNotFound):
		respondError(w, http.StatusNotFound, "not_found", "profile not found")
	case errors.Is(err, tracker.ErrSpecialtyNotFound):
		respondError(w, http.StatusNotFound, "specialty_not_found", err.Error())
	case errors.Is(err, tracker.ErrNegativePoints):
		respondError(w, http.StatusUnprocessableEntity, "negative_points", err.Error())
	case errors.Is(err, readiness.ErrInvalidGoal):
		respondError(w, http.StatusUnprocessableEntity, "invalid_goal", err.Error())
	default:
		slog.Error("request failed", "action", action, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to "+action)
	}
}

// decodeJSON reads a JSON request body of at most 1 MiB
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(v)
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	results := s.health.HealthCheckAll(r.Context())

	checks := make(map[string]string, len(results))
	for name, err := range results {
		if err != nil {
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	if !health.Healthy(results) {
		slog.Warn("readiness check failed", "checks", checks)
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
		"checks": checks,
	})
}
