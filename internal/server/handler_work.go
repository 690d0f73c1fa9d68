package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/me/coordinate/pkg/model"
)

type submitRequest struct {
	Task   string         `json:"task"`
	Params map[string]any `json:"params"`
}

type submitResponse struct {
	ID string `json:"id"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if req.Task == "" {
		respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", "task is required")
		return
	}

	id, err := s.coord.Submit(req.Task, req.Params)
	if err != nil {
		writeCoordinatorError(w, r, err)
		return
	}
	respondCreated(w, r, submitResponse{ID: id})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	unit, ok := s.coord.Get(id)
	if !ok {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "no such work unit")
		return
	}
	respondOK(w, r, unit)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	filter := model.ListFilter{
		State: model.WorkState(r.URL.Query().Get("state")),
		Task:  r.URL.Query().Get("task"),
	}
	respondOK(w, r, s.coord.List(filter))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := s.coord.Cancel(id)
	if err != nil {
		writeCoordinatorError(w, r, err)
		return
	}
	if state == "" {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "no such work unit")
		return
	}
	respondOK(w, r, map[string]string{"state": string(state)})
}

func writeCoordinatorError(w http.ResponseWriter, r *http.Request, err error) {
	ce, ok := err.(*model.CoordinatorError)
	if !ok {
		respondError(w, r, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	status := http.StatusBadRequest
	if ce.Code == model.ErrShutdown {
		status = http.StatusServiceUnavailable
	}
	respondError(w, r, status, string(ce.Code), ce.Message)
}
