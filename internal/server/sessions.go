package server

import (
	"net/http"
	"strings"

	"realcv/internal/tracking"
)

// maxSessionIDLength bounds writing context ids taken from the path.
const maxSessionIDLength = 200

func sessionID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" || len(id) > maxSessionIDLength {
		return "", badRequest("session id must be 1-%d characters", maxSessionIDLength)
	}
	return id, nil
}

// handleSaveSession persists the client's current session for the
// writing context in the path. The last write wins.
func (s *Server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.validator.ValidateSession(data); err != nil {
		s.writeError(w, r, err)
		return
	}
	ws, err := tracking.DecodeSession(data)
	if err != nil {
		s.writeError(w, r, badRequest("%v", err))
		return
	}
	if ws.ID != "" && ws.ID != id {
		s.writeError(w, r, badRequest("session id %q does not match path %q", ws.ID, id))
		return
	}
	ws.ID = id

	if err := s.store.SaveSession(ws); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

// handleLoadSession returns the stored session so the client can resume.
func (s *Server) handleLoadSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ws, err := s.store.LoadSession(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

// handleDeleteSession discards the stored session so the next load starts
// fresh.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.DeleteSession(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
