package daemon

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/felixgeelhaar/polyglot/internal/domain"
)

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prefersDark, _ := strconv.ParseBool(q.Get("prefers_dark"))

	state, err := s.preferences.Theme(r.Context(), q.Get("scope"), prefersDark)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to read theme", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, state)
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Scope string `json:"scope"`
		Theme string `json:"theme"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	state, err := s.preferences.SetTheme(r.Context(), req.Scope, domain.Theme(req.Theme))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTheme) {
			s.jsonError(w, http.StatusBadRequest, "invalid theme", err)
			return
		}
		s.jsonError(w, http.StatusInternalServerError, "failed to store theme", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, state)
}

func (s *Server) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Scope       string `json:"scope"`
		PrefersDark bool   `json:"prefers_dark"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	state, err := s.preferences.ToggleTheme(r.Context(), req.Scope, req.PrefersDark)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to store theme", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, state)
}
