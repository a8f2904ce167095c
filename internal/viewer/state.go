package viewer

import (
	"sort"
	"strings"

	"github.com/felixgeelhaar/polyglot/internal/content"
	"github.com/felixgeelhaar/polyglot/internal/domain"
	"github.com/felixgeelhaar/polyglot/internal/tutor"
)

// View is the screen a viewer session is showing
type View string

const (
	ViewHome        View = "home"
	ViewLevelSelect View = "level_select"
	ViewDashboard   View = "dashboard"
)

// Selection holds the chosen language and level. Nil means not chosen.
type Selection struct {
	Language *domain.Language
	Level    *domain.SkillLevel
}

// State is the complete view state of one viewer session.
// Transition functions never mutate their input.
type State struct {
	View           View
	Selection      Selection
	ExpandedTopics map[string]struct{}
	ActiveSubTopic *domain.SubTopic
	Transcript     []domain.ChatMessage
	PanelVisible   bool
	Pending        bool
	LatestTask     uint64
}

// Task is one outbound tutor call, captured at issue time
type Task struct {
	Token       uint64
	Kind        tutor.Kind
	Language    string
	Level       domain.SkillLevel
	Topic       string
	CodeContext string
	Question    string
}

// NewState returns the initial state: home screen, nothing selected
func NewState() State {
	return State{
		View:           ViewHome,
		ExpandedTopics: map[string]struct{}{},
		Transcript:     []domain.ChatMessage{},
	}
}

func (s State) clone() State {
	out := s
	out.ExpandedTopics = make(map[string]struct{}, len(s.ExpandedTopics))
	for id := range s.ExpandedTopics {
		out.ExpandedTopics[id] = struct{}{}
	}
	out.Transcript = append([]domain.ChatMessage(nil), s.Transcript...)
	if s.Selection.Language != nil {
		lang := *s.Selection.Language
		out.Selection.Language = &lang
	}
	if s.Selection.Level != nil {
		level := *s.Selection.Level
		out.Selection.Level = &level
	}
	if s.ActiveSubTopic != nil {
		sub := *s.ActiveSubTopic
		out.ActiveSubTopic = &sub
	}
	return out
}

// IsExpanded reports whether a topic group is open
func (s State) IsExpanded(topicID string) bool {
	_, ok := s.ExpandedTopics[topicID]
	return ok
}

// ExpandedList returns the expanded topic IDs, sorted
func (s State) ExpandedList() []string {
	ids := make([]string, 0, len(s.ExpandedTopics))
	for id := range s.ExpandedTopics {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SelectLanguage moves from home to level selection
func SelectLanguage(s State, lang domain.Language) (State, bool) {
	if s.View != ViewHome {
		return s, false
	}
	out := s.clone()
	out.Selection.Language = &lang
	out.View = ViewLevelSelect
	return out, true
}

// SelectLevel enters the dashboard if the selected language has content at level.
// An absent course leaves the state untouched.
func SelectLevel(s State, src content.Source, level domain.SkillLevel) (State, bool) {
	if s.View != ViewLevelSelect || s.Selection.Language == nil {
		return s, false
	}
	course, ok := src.ContentFor(s.Selection.Language.ID, level).Get()
	if !ok {
		return s, false
	}

	out := s.clone()
	out.Selection.Level = &level
	out.View = ViewDashboard
	seedLessons(&out, course)
	return out, true
}

// seedLessons expands the first topic and activates its first subtopic
func seedLessons(s *State, course domain.CourseData) {
	s.ExpandedTopics = map[string]struct{}{}
	s.ActiveSubTopic = nil

	first, ok := course.FirstTopic()
	if !ok {
		return
	}
	s.ExpandedTopics[first.ID] = struct{}{}
	if sub, ok := first.FirstSubTopic(); ok {
		s.ActiveSubTopic = &sub
	}
}

// GoBack steps one screen back, clearing the selection it leaves behind
func GoBack(s State) (State, bool) {
	switch s.View {
	case ViewDashboard:
		out := s.clone()
		out.Selection.Level = nil
		out.View = ViewLevelSelect
		return out, true
	case ViewLevelSelect:
		out := s.clone()
		out.Selection = Selection{}
		out.View = ViewHome
		return out, true
	default:
		return s, false
	}
}

// ToggleTopic flips a topic's membership in the expanded set
func ToggleTopic(s State, topicID string) State {
	out := s.clone()
	if out.IsExpanded(topicID) {
		delete(out.ExpandedTopics, topicID)
	} else {
		out.ExpandedTopics[topicID] = struct{}{}
	}
	return out
}

// SelectSubTopic makes a lesson active without touching the expanded set
func SelectSubTopic(s State, sub domain.SubTopic) State {
	out := s.clone()
	out.ActiveSubTopic = &sub
	return out
}

// BeginAsk records the learner's question and issues a task.
// It is a no-op for blank text or when no language or lesson is selected.
func BeginAsk(s State, text string, token uint64) (State, Task, bool) {
	if strings.TrimSpace(text) == "" || s.Selection.Language == nil || s.ActiveSubTopic == nil {
		return s, Task{}, false
	}

	out := s.clone()
	out.Transcript = append(out.Transcript, domain.UserMessage(text))
	out.Pending = true
	out.LatestTask = token

	return out, Task{
		Token:       token,
		Kind:        tutor.KindAsk,
		Language:    s.Selection.Language.Name,
		Topic:       s.ActiveSubTopic.Title,
		CodeContext: s.ActiveSubTopic.CodeContext(),
		Question:    text,
	}, true
}

// BeginExercise opens the panel and issues an exercise task.
// It needs a language, a level and an active lesson.
func BeginExercise(s State, token uint64) (State, Task, bool) {
	if s.Selection.Language == nil || s.Selection.Level == nil || s.ActiveSubTopic == nil {
		return s, Task{}, false
	}

	out := s.clone()
	out.PanelVisible = true
	out.Transcript = append(out.Transcript, domain.UserMessage(tutor.ExerciseUserPrompt))
	out.Pending = true
	out.LatestTask = token

	return out, Task{
		Token:    token,
		Kind:     tutor.KindExercise,
		Language: s.Selection.Language.Name,
		Level:    *s.Selection.Level,
		Topic:    s.ActiveSubTopic.Title,
	}, true
}

// Complete appends a task's reply. Completions apply in arrival order
// regardless of token, navigation, or intervening clears.
func Complete(s State, task Task, reply string) State {
	out := s.clone()
	out.Transcript = append(out.Transcript, domain.ModelMessage(reply))
	out.Pending = false
	return out
}

// ClearTranscript empties the transcript; pending and panel are untouched
func ClearTranscript(s State) State {
	out := s.clone()
	out.Transcript = []domain.ChatMessage{}
	return out
}

// TogglePanel flips tutor panel visibility
func TogglePanel(s State) State {
	out := s.clone()
	out.PanelVisible = !out.PanelVisible
	return out
}
