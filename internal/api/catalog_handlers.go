package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Catalog handlers: specialty targets and the CPD guideline table

func (s *Server) handleListSpecialties(w http.ResponseWriter, r *http.Request) {
	specialties := s.catalog.Specialties()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"specialties": specialties,
		"total":       len(specialties),
	})
}

func (s *Server) handleGetSpecialty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	specialty := s.catalog.Specialty(id)
	if specialty == nil {
		respondError(w, http.StatusNotFound, "not_found", "specialty not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"specialty":  specialty,
		"guidelines": s.catalog.GuidelinesFor(id),
	})
}

func (s *Server) handleListGuidelines(w http.ResponseWriter, r *http.Request) {
	guidelines := s.catalog.Guidelines()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"guidelines": guidelines,
		"total":      len(guidelines),
	})
}
