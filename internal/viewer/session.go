package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/polyglot/internal/content"
	"github.com/felixgeelhaar/polyglot/internal/domain"
	"github.com/felixgeelhaar/polyglot/internal/events"
	"github.com/felixgeelhaar/polyglot/internal/tutor"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoCourse        = errors.New("no course selected")
)

// Snapshot is the client-facing rendering of a session's state
type Snapshot struct {
	SessionID      string               `json:"session_id"`
	Version        uint64               `json:"version"`
	View           View                 `json:"view"`
	Language       *domain.Language     `json:"language,omitempty"`
	Level          *domain.SkillLevel   `json:"level,omitempty"`
	Introduction   string               `json:"introduction,omitempty"`
	Topics         []domain.Topic       `json:"topics,omitempty"`
	ExpandedTopics []string             `json:"expanded_topics"`
	ActiveSubTopic *domain.SubTopic     `json:"active_sub_topic,omitempty"`
	Transcript     []domain.ChatMessage `json:"transcript"`
	PanelVisible   bool                 `json:"panel_visible"`
	Pending        bool                 `json:"pending"`
	LatestTask     uint64               `json:"latest_task"`
}

// Session owns the state of one viewer and runs its tutor tasks.
// All methods are safe for concurrent use.
type Session struct {
	id        string
	src       content.Source
	gateway   tutor.Gateway
	publisher events.Publisher
	logger    *slog.Logger
	baseCtx   context.Context

	mu         sync.Mutex
	state      State
	version    uint64
	nextToken  uint64
	lastActive time.Time
	subs       map[int]chan Snapshot
	nextSub    int

	tasks sync.WaitGroup
}

// Config wires a session's collaborators
type Config struct {
	ID        string
	Source    content.Source
	Gateway   tutor.Gateway
	Publisher events.Publisher
	Logger    *slog.Logger
	// BaseContext bounds tutor calls. Requests that trigger a call do not cancel it.
	BaseContext context.Context
}

// NewSession creates a session on the home screen
func NewSession(cfg Config) *Session {
	if cfg.Publisher == nil {
		cfg.Publisher = events.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}

	return &Session{
		id:         cfg.ID,
		src:        cfg.Source,
		gateway:    cfg.Gateway,
		publisher:  cfg.Publisher,
		logger:     cfg.Logger.With("session_id", cfg.ID),
		baseCtx:    cfg.BaseContext,
		state:      NewState(),
		lastActive: time.Now(),
		subs:       make(map[int]chan Snapshot),
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// State returns a copy of the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Snapshot returns the current client-facing view
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// LastActive returns when the session last handled an operation
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// SelectLanguage picks a language on the home screen
func (s *Session) SelectLanguage(languageID string) (Snapshot, bool, error) {
	lang, ok := s.src.Language(languageID)
	if !ok {
		return s.Snapshot(), false, fmt.Errorf("%w: %s", domain.ErrLanguageNotFound, languageID)
	}
	snap, applied := s.apply(func(st State) (State, bool) {
		return SelectLanguage(st, lang)
	})
	return snap, applied, nil
}

// SelectLevel enters the dashboard when content exists for the level
func (s *Session) SelectLevel(level domain.SkillLevel) (Snapshot, bool) {
	return s.apply(func(st State) (State, bool) {
		return SelectLevel(st, s.src, level)
	})
}

// GoBack returns to the previous screen
func (s *Session) GoBack() (Snapshot, bool) {
	return s.apply(GoBack)
}

// ToggleTopic expands or collapses a topic group of the current course.
// Unknown topic IDs are ignored.
func (s *Session) ToggleTopic(topicID string) (Snapshot, bool) {
	return s.apply(func(st State) (State, bool) {
		course, ok := s.courseFor(st)
		if !ok || !course.HasTopic(topicID) {
			return st, false
		}
		return ToggleTopic(st, topicID), true
	})
}

// SelectSubTopic activates a lesson of the current course by ID
func (s *Session) SelectSubTopic(subTopicID string) (Snapshot, error) {
	var lookupErr error
	snap, _ := s.apply(func(st State) (State, bool) {
		course, ok := s.courseFor(st)
		if !ok {
			lookupErr = ErrNoCourse
			return st, false
		}
		sub, _, found := course.FindSubTopic(subTopicID)
		if !found {
			lookupErr = fmt.Errorf("%w: %s", domain.ErrSubTopicNotFound, subTopicID)
			return st, false
		}
		return SelectSubTopic(st, sub), true
	})
	return snap, lookupErr
}

// Ask sends a learner question to the tutor. The reply arrives asynchronously.
func (s *Session) Ask(text string) (Snapshot, bool) {
	return s.issue(func(st State, token uint64) (State, Task, bool) {
		return BeginAsk(st, text, token)
	})
}

// GenerateExercise requests a fresh exercise for the active lesson
func (s *Session) GenerateExercise() (Snapshot, bool) {
	return s.issue(BeginExercise)
}

// ClearTranscript empties the tutor transcript
func (s *Session) ClearTranscript() Snapshot {
	snap, _ := s.apply(func(st State) (State, bool) {
		return ClearTranscript(st), true
	})
	return snap
}

// TogglePanel shows or hides the tutor panel
func (s *Session) TogglePanel() Snapshot {
	snap, _ := s.apply(func(st State) (State, bool) {
		return TogglePanel(st), true
	})
	return snap
}

// Subscribe returns a channel that receives the latest snapshot after every
// change. Slow readers see only the most recent snapshot.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Snapshot, 1)
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// Wait blocks until every issued tutor task has completed
func (s *Session) Wait() {
	s.tasks.Wait()
}

// Close drops all subscribers. In-flight tasks still complete.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.subs {
		delete(s.subs, id)
		close(c)
	}
}

func (s *Session) apply(fn func(State) (State, bool)) (Snapshot, bool) {
	s.mu.Lock()
	before := s.state.View
	next, applied := fn(s.state)
	s.lastActive = time.Now()
	if applied {
		s.state = next
		s.version++
		s.broadcastLocked()
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if applied && snap.View != before {
		s.publish(events.TypeViewChanged, map[string]any{"from": before, "to": snap.View})
	}
	return snap, applied
}

func (s *Session) issue(begin func(State, uint64) (State, Task, bool)) (Snapshot, bool) {
	s.mu.Lock()
	s.lastActive = time.Now()
	next, task, ok := begin(s.state, s.nextToken+1)
	if !ok {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, false
	}
	s.nextToken = task.Token
	s.state = next
	s.version++
	s.broadcastLocked()
	snap := s.snapshotLocked()
	s.tasks.Add(1)
	s.mu.Unlock()

	s.publish(events.TypeTaskIssued, map[string]any{"token": task.Token, "kind": task.Kind})
	go s.run(task)
	return snap, true
}

// run performs one gateway call and applies exactly one model entry
func (s *Session) run(task Task) {
	defer s.tasks.Done()

	reply, err := s.call(task)
	failed := err != nil
	if failed {
		s.logger.Warn("tutor task failed", "token", task.Token, "kind", task.Kind, "error", err)
		reply = tutor.FailureReply(task.Kind)
	}

	s.mu.Lock()
	s.state = Complete(s.state, task, reply)
	s.version++
	s.broadcastLocked()
	s.mu.Unlock()

	s.publish(events.TypeTaskCompleted, map[string]any{"token": task.Token, "kind": task.Kind, "failed": failed})
}

func (s *Session) call(task Task) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tutor gateway panic: %v", r)
		}
	}()

	if s.gateway == nil {
		return "", errors.New("no tutor gateway configured")
	}

	switch task.Kind {
	case tutor.KindExercise:
		return s.gateway.GenerateExercise(s.baseCtx, task.Language, task.Level, task.Topic)
	default:
		return s.gateway.AskTutor(s.baseCtx, task.Language, task.Topic, task.CodeContext, task.Question)
	}
}

func (s *Session) courseFor(st State) (domain.CourseData, bool) {
	if st.Selection.Language == nil || st.Selection.Level == nil {
		return domain.CourseData{}, false
	}
	return s.src.ContentFor(st.Selection.Language.ID, *st.Selection.Level).Get()
}

func (s *Session) snapshotLocked() Snapshot {
	st := s.state.clone()
	snap := Snapshot{
		SessionID:      s.id,
		Version:        s.version,
		View:           st.View,
		Language:       st.Selection.Language,
		Level:          st.Selection.Level,
		ExpandedTopics: st.ExpandedList(),
		ActiveSubTopic: st.ActiveSubTopic,
		Transcript:     st.Transcript,
		PanelVisible:   st.PanelVisible,
		Pending:        st.Pending,
		LatestTask:     st.LatestTask,
	}
	if st.View == ViewDashboard {
		if course, ok := s.courseFor(st); ok {
			snap.Introduction = course.Introduction
			snap.Topics = course.Topics
		}
	}
	return snap
}

func (s *Session) broadcastLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (s *Session) publish(eventType string, data any) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.publisher.Publish(ctx, events.New(eventType, s.id, data)); err != nil {
		s.logger.Warn("failed to publish event", "type", eventType, "error", err)
	}
}
