package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/pathway-engine/internal/models"
	"github.com/terra-clan/pathway-engine/internal/readiness"
)

// activityView is an activity with its derived classification attached.
// The classification is computed per response and never stored.
type activityView struct {
	*models.Activity
	Classification readiness.Category `json:"classification"`
}

func viewActivity(a *models.Activity) activityView {
	return activityView{Activity: a, Classification: readiness.ClassifyActivity(a)}
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	activities, err := s.manager.GetActivities(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err, "list activities")
		return
	}

	views := make([]activityView, 0, len(activities))
	for _, a := range activities {
		views = append(views, viewActivity(a))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"activities": views,
		"total":      len(views),
	})
}

func (s *Server) handleCreateActivity(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req models.ActivityInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.Description == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "description is required")
		return
	}

	a, err := s.manager.CreateActivity(r.Context(), userID, req)
	if err != nil {
		respondServiceError(w, err, "create activity")
		return
	}

	respondJSON(w, http.StatusCreated, viewActivity(a))
}

func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	a, err := s.manager.GetActivity(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, "get activity")
		return
	}

	respondJSON(w, http.StatusOK, viewActivity(a))
}

func (s *Server) handleUpdateActivity(w http.ResponseWriter, r *http.Request) {
	var req models.ActivityInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.Description == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "description is required")
		return
	}

	a, err := s.manager.UpdateActivity(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, err, "update activity")
		return
	}

	respondJSON(w, http.StatusOK, viewActivity(a))
}

func (s *Server) handleDeleteActivity(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.DeleteActivity(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err, "delete activity")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "activity deleted",
	})
}
