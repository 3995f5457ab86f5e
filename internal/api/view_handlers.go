package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/pathway-engine/internal/models"
	"github.com/terra-clan/pathway-engine/internal/readiness"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.manager.Dashboard(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondServiceError(w, err, "compute dashboard")
		return
	}

	respondJSON(w, http.StatusOK, d)
}

func (s *Server) handlePathway(w http.ResponseWriter, r *http.Request) {
	specialtyID := r.URL.Query().Get("specialty")

	p, err := s.manager.Pathway(r.Context(), chi.URLParam(r, "userID"), specialtyID)
	if err != nil {
		respondServiceError(w, err, "compute pathway")
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// ProgressRequest is the stateless progress calculator input. Both values
// accept numbers or numeric strings.
type ProgressRequest struct {
	TotalPoints models.Points `json:"totalPoints"`
	GoalPoints  models.Points `json:"goalPoints"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	var req ProgressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	pct, err := readiness.Progress(req.TotalPoints.Float(), req.GoalPoints.Float())
	if err != nil {
		respondServiceError(w, err, "compute progress")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{
		"progress": pct,
	})
}
