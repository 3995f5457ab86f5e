package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/pathway-engine/internal/models"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.manager.GetProfile(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondServiceError(w, err, "get profile")
		return
	}

	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	var req models.ProfileInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	p, err := s.manager.UpsertProfile(r.Context(), chi.URLParam(r, "userID"), req)
	if err != nil {
		respondServiceError(w, err, "save profile")
		return
	}

	respondJSON(w, http.StatusOK, p)
}
