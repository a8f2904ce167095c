package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/felixgeelhaar/polyglot/internal/domain"
	"github.com/felixgeelhaar/polyglot/internal/preference"
	"github.com/felixgeelhaar/polyglot/internal/viewer"
)

// sseKeepAlive is how often an idle event stream gets a comment line
const sseKeepAlive = 15 * time.Second

// transitionResponse wraps every state-changing call. Rejected transitions
// are answered with Applied false and the unchanged snapshot.
type transitionResponse struct {
	Applied bool            `json:"applied"`
	Session viewer.Snapshot `json:"session"`
}

// sessionFromPath resolves {id}, writing the error response itself on failure
func (s *Server) sessionFromPath(w http.ResponseWriter, r *http.Request) (*viewer.Session, bool) {
	sess, err := s.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, viewer.ErrSessionNotFound) {
			s.jsonError(w, http.StatusNotFound, "session not found", nil)
			return nil, false
		}
		s.jsonError(w, http.StatusInternalServerError, "failed to get session", err)
		return nil, false
	}
	return sess, true
}

func (s *Server) transition(w http.ResponseWriter, snap viewer.Snapshot, applied bool) {
	s.jsonResponse(w, http.StatusOK, transitionResponse{Applied: applied, Session: snap})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Scope       string `json:"scope"`
		PrefersDark bool   `json:"prefers_dark"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	sess, err := s.sessions.Create(r.Context())
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to create session", err)
		return
	}

	theme, err := s.preferences.Theme(r.Context(), req.Scope, req.PrefersDark)
	if err != nil {
		s.logger.Warn("theme lookup failed, using OS preference",
			"session_id", sess.ID(),
			"correlation_id", GetCorrelationID(r.Context()),
			"error", err)
		theme = preference.ThemeState{
			Scope: req.Scope,
			Theme: domain.ThemeFromDarkMode(req.PrefersDark),
		}
	}

	s.jsonResponse(w, http.StatusCreated, map[string]interface{}{
		"session": sess.Snapshot(),
		"theme":   theme,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"sessions": s.sessions.List(r.Context()),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.sessions.Delete(r.Context(), id); err != nil {
		if errors.Is(err, viewer.ErrSessionNotFound) {
			s.jsonError(w, http.StatusNotFound, "session not found", nil)
			return
		}
		s.jsonError(w, http.StatusInternalServerError, "failed to delete session", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"deleted": true,
	})
}

// handleSessionEvents streams a snapshot after every change, starting with
// the current one
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.jsonError(w, http.StatusInternalServerError, "streaming not supported", nil)
		return
	}

	updates, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeSnapshotEvent(w, sess.Snapshot()); err != nil {
		return
	}
	flusher.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case snap, open := <-updates:
			if !open {
				fmt.Fprint(w, "event: closed\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			if err := writeSnapshotEvent(w, snap); err != nil {
				s.logger.Debug("event stream write failed", "session_id", sess.ID(), "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeSnapshotEvent(w http.ResponseWriter, snap viewer.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: snapshot\nid: %d\ndata: %s\n\n", snap.Version, data)
	return err
}

// Navigation handlers

func (s *Server) handleSelectLanguage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}

	var req struct {
		LanguageID string `json:"language_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.LanguageID == "" {
		s.jsonError(w, http.StatusBadRequest, "language_id is required", nil)
		return
	}

	snap, applied, err := sess.SelectLanguage(req.LanguageID)
	if errors.Is(err, domain.ErrLanguageNotFound) {
		s.jsonError(w, http.StatusNotFound, "language not found", err)
		return
	}
	s.transition(w, snap, applied)
}

func (s *Server) handleSelectLevel(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}

	var req struct {
		Level string `json:"level"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	level, err := domain.ParseSkillLevel(req.Level)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid level", err)
		return
	}

	snap, applied := sess.SelectLevel(level)
	s.transition(w, snap, applied)
}

func (s *Server) handleGoBack(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	snap, applied := sess.GoBack()
	s.transition(w, snap, applied)
}

func (s *Server) handleToggleTopic(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	snap, applied := sess.ToggleTopic(r.PathValue("topic"))
	s.transition(w, snap, applied)
}

func (s *Server) handleSelectSubTopic(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}

	var req struct {
		SubTopicID string `json:"subtopic_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	snap, err := sess.SelectSubTopic(req.SubTopicID)
	switch {
	case errors.Is(err, viewer.ErrNoCourse):
		s.jsonError(w, http.StatusConflict, "no course selected", nil)
	case errors.Is(err, domain.ErrSubTopicNotFound):
		s.jsonError(w, http.StatusNotFound, "subtopic not found", err)
	default:
		s.transition(w, snap, true)
	}
}

// Tutor handlers

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	snap, applied := sess.Ask(req.Text)
	s.transition(w, snap, applied)
}

func (s *Server) handleGenerateExercise(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	snap, applied := sess.GenerateExercise()
	s.transition(w, snap, applied)
}

func (s *Server) handleTogglePanel(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	s.transition(w, sess.TogglePanel(), true)
}

func (s *Server) handleClearTranscript(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	s.transition(w, sess.ClearTranscript(), true)
}
