package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/pathway-engine/internal/models"
)

// Task and event documents are accepted in any of their historical shapes
// and stored as given.

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.manager.ListTasks(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondServiceError(w, err, "list tasks")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": models.Docs(tasks),
		"total": len(tasks),
	})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var doc models.DeadlineDoc
	if err := decodeJSON(w, r, &doc); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	task, err := s.manager.CreateTask(r.Context(), chi.URLParam(r, "userID"), doc)
	if err != nil {
		respondServiceError(w, err, "create task")
		return
	}

	respondJSON(w, http.StatusCreated, task.Doc)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var doc models.DeadlineDoc
	if err := decodeJSON(w, r, &doc); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	task, err := s.manager.UpdateTask(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "id"), doc)
	if err != nil {
		respondServiceError(w, err, "update task")
		return
	}

	respondJSON(w, http.StatusOK, task.Doc)
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.manager.CompleteTask(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, "complete task")
		return
	}

	respondJSON(w, http.StatusOK, task.Doc)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.DeleteTask(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err, "delete task")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "task deleted",
	})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.manager.ListEvents(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondServiceError(w, err, "list events")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": models.Docs(events),
		"total":  len(events),
	})
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var doc models.DeadlineDoc
	if err := decodeJSON(w, r, &doc); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	event, err := s.manager.CreateEvent(r.Context(), chi.URLParam(r, "userID"), doc)
	if err != nil {
		respondServiceError(w, err, "create event")
		return
	}

	respondJSON(w, http.StatusCreated, event.Doc)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.DeleteEvent(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err, "delete event")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "event deleted",
	})
}
