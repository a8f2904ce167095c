package daemon

import (
	"net/http"

	"github.com/felixgeelhaar/polyglot/internal/content"
	"github.com/felixgeelhaar/polyglot/internal/domain"
)

type languageView struct {
	domain.Language
	Levels []content.LevelAvailability `json:"levels"`
}

func (s *Server) handleListLanguages(w http.ResponseWriter, r *http.Request) {
	langs := s.catalog.Languages()
	result := make([]languageView, 0, len(langs))
	for _, lang := range langs {
		result = append(result, languageView{
			Language: lang,
			Levels:   s.catalog.Availability(lang.ID),
		})
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"languages": result,
	})
}

// courseFromPath resolves {lang} and {level}, writing the error response
// itself when either is unknown
func (s *Server) courseFromPath(w http.ResponseWriter, r *http.Request) (domain.Language, domain.SkillLevel, domain.CourseData, bool) {
	lang, ok := s.catalog.Language(r.PathValue("lang"))
	if !ok {
		s.jsonError(w, http.StatusNotFound, "language not found", nil)
		return domain.Language{}, "", domain.CourseData{}, false
	}

	level, err := domain.ParseSkillLevel(r.PathValue("level"))
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid level", err)
		return domain.Language{}, "", domain.CourseData{}, false
	}

	course, found := s.catalog.ContentFor(lang.ID, level).Get()
	if !found {
		s.jsonError(w, http.StatusNotFound, "no course for this level", nil)
		return domain.Language{}, "", domain.CourseData{}, false
	}
	return lang, level, course, true
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	lang, level, course, ok := s.courseFromPath(w, r)
	if !ok {
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"language":     lang,
		"level":        level,
		"introduction": course.Introduction,
		"topics":       course.Topics,
	})
}

func (s *Server) handleGetSubTopic(w http.ResponseWriter, r *http.Request) {
	lang, level, course, ok := s.courseFromPath(w, r)
	if !ok {
		return
	}

	sub, topic, found := course.FindSubTopic(r.PathValue("id"))
	if !found {
		s.jsonError(w, http.StatusNotFound, "subtopic not found", nil)
		return
	}

	rendered, err := s.renderer.RenderSubTopic(lang.ID, sub)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to render subtopic", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"language": lang.ID,
		"level":    level,
		"topic_id": topic.ID,
		"subtopic": rendered,
	})
}
