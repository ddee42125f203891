package api

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"taskboard/pkg/task"
)

const maxBodyBytes = 1 << 20

type createRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.sync.List(r.Context())
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, 200, tasks)
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	t, err := s.sync.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	t, err := s.sync.Create(r.Context(), req.Title, req.Description)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, 201, t)
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	var p task.Patch
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&p); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	t, err := s.sync.Update(r.Context(), r.PathValue("id"), p)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	removed, err := s.sync.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeTaskError(w, err)
		return
	}
	if !removed {
		writeError(w, 404, task.ErrNotFound.Error())
		return
	}
	writeJSON(w, 200, map[string]string{"message": "Task deleted successfully"})
}

func writeTaskError(w http.ResponseWriter, err error) {
	var verr *task.ValidationError
	switch {
	case errors.Is(err, task.ErrNotFound):
		writeError(w, 404, err.Error())
	case errors.As(err, &verr):
		writeError(w, 422, verr.Error())
	default:
		log.WithError(err).Error("task request failed")
		writeError(w, 500, "internal error")
	}
}
