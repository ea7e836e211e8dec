package api

import (
	"net/http"
)

// passwordRequest carries an optional explicit password. An empty
// password defers to the live password session.
type passwordRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleGetPrivateKey(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	privateKey, err := s.keyService.GetPrivateKey(req.Password)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"privateKey": privateKey})
}

func (s *Server) handleGetViewKey(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	viewKey, err := s.keyService.GetViewKey(req.Password)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"viewKey": viewKey})
}

func (s *Server) handleGetSeedPhrase(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	seedPhrase, err := s.keyService.GetSeedPhrase(req.Password)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"seedPhrase": seedPhrase})
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if _, err := s.keyService.Unlock(req.Password); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"unlocked": true})
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	s.keyService.Lock()
	respondJSON(w, http.StatusOK, map[string]bool{"locked": true})
}
