package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/hupe1980/roundtable"
	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/mode"
)

type createSessionRequest struct {
	Mode       string         `json:"mode"`
	Topic      string         `json:"topic"`
	Context    map[string]any `json:"context"`
	Collection string         `json:"collection"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Mode == "" || req.Topic == "" {
		jsonError(w, "mode and topic are required", http.StatusBadRequest)
		return
	}

	sess, err := s.rt.CreateSession(r.Context(), req.Mode, req.Topic, req.Context, req.Collection)
	if err != nil {
		writeError(w, err)
		return
	}

	jsonResponse(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	sessions, err := s.rt.ListSessions(r.Context(), r.URL.Query().Get("collection"), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOr404(w, r)
	if !ok {
		return
	}

	jsonResponse(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrSessionNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, mode.ErrUnknownMode), errors.Is(err, mode.ErrInvalidConfig):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, roundtable.ErrSessionRunning):
		jsonError(w, err.Error(), http.StatusConflict)
	default:
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func jsonResponse(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	jsonResponse(w, code, map[string]string{"error": msg})
}
