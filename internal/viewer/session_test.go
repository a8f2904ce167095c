package viewer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/polyglot/internal/domain"
	"github.com/felixgeelhaar/polyglot/internal/events"
	"github.com/felixgeelhaar/polyglot/internal/tutor"
)

func newTestSession(t *testing.T, gw *stubGateway) *Session {
	t.Helper()
	return NewSession(Config{ID: "test", Source: testSource(t), Gateway: gw})
}

func toDashboard(t *testing.T, s *Session) {
	t.Helper()
	if _, ok, err := s.SelectLanguage("go"); !ok || err != nil {
		t.Fatalf("SelectLanguage() = %v, %v", ok, err)
	}
	if _, ok := s.SelectLevel(domain.LevelBeginner); !ok {
		t.Fatal("SelectLevel() not applied")
	}
}

func TestSession_SelectLanguage_Unknown(t *testing.T) {
	s := newTestSession(t, &stubGateway{})

	snap, ok, err := s.SelectLanguage("cobol")
	if !errors.Is(err, domain.ErrLanguageNotFound) {
		t.Errorf("error = %v, want ErrLanguageNotFound", err)
	}
	if ok || snap.View != ViewHome {
		t.Errorf("ok = %v, View = %v", ok, snap.View)
	}
}

func TestSession_Snapshot_Dashboard(t *testing.T) {
	s := newTestSession(t, &stubGateway{})
	toDashboard(t, s)

	snap := s.Snapshot()
	if snap.Introduction != "Simple, reliable, efficient." {
		t.Errorf("Introduction = %q", snap.Introduction)
	}
	if len(snap.Topics) != 2 {
		t.Errorf("len(Topics) = %d, want 2", len(snap.Topics))
	}
	if snap.Language.ID != "go" || *snap.Level != domain.LevelBeginner {
		t.Errorf("selection = %v / %v", snap.Language, snap.Level)
	}
	if snap.Version == 0 {
		t.Error("Version should advance on changes")
	}

	back, _ := s.GoBack()
	if back.Topics != nil || back.Introduction != "" {
		t.Error("course data should only be sent on the dashboard")
	}
}

func TestSession_SelectSubTopic(t *testing.T) {
	s := newTestSession(t, &stubGateway{})

	if _, err := s.SelectSubTopic("vars"); !errors.Is(err, ErrNoCourse) {
		t.Errorf("error = %v, want ErrNoCourse", err)
	}

	toDashboard(t, s)
	snap, err := s.SelectSubTopic("structs")
	if err != nil {
		t.Fatalf("SelectSubTopic() error = %v", err)
	}
	if snap.ActiveSubTopic.ID != "structs" {
		t.Errorf("ActiveSubTopic = %v", snap.ActiveSubTopic.ID)
	}

	if _, err := s.SelectSubTopic("nope"); !errors.Is(err, domain.ErrSubTopicNotFound) {
		t.Errorf("error = %v, want ErrSubTopicNotFound", err)
	}
}

func TestSession_ToggleTopic(t *testing.T) {
	s := newTestSession(t, &stubGateway{})

	if _, ok := s.ToggleTopic("core"); ok {
		t.Error("ToggleTopic() applied without a course")
	}

	toDashboard(t, s)
	snap, ok := s.ToggleTopic("types")
	if !ok || len(snap.ExpandedTopics) != 2 {
		t.Errorf("ToggleTopic(types) = %v, expanded %v", ok, snap.ExpandedTopics)
	}

	snap, ok = s.ToggleTopic("stale")
	if ok {
		t.Error("ToggleTopic() applied for an unknown topic")
	}
	for _, id := range snap.ExpandedTopics {
		if id == "stale" {
			t.Errorf("expanded = %v, unknown topic leaked in", snap.ExpandedTopics)
		}
	}
}

func TestSession_Ask_Success(t *testing.T) {
	gw := &stubGateway{reply: "Use :=."}
	s := newTestSession(t, gw)
	toDashboard(t, s)

	snap, ok := s.Ask("What is :=?")
	if !ok {
		t.Fatal("Ask() not applied")
	}
	if !snap.Pending || len(snap.Transcript) != 1 {
		t.Errorf("immediate snapshot: Pending = %v, Transcript = %v", snap.Pending, snap.Transcript)
	}

	s.Wait()
	st := s.State()
	if st.Pending {
		t.Error("Pending should be false after completion")
	}
	want := []domain.ChatMessage{domain.UserMessage("What is :=?"), domain.ModelMessage("Use :=.")}
	if len(st.Transcript) != 2 || st.Transcript[0] != want[0] || st.Transcript[1] != want[1] {
		t.Errorf("Transcript = %v, want %v", st.Transcript, want)
	}

	calls := gw.Calls()
	if len(calls) != 1 {
		t.Fatalf("gateway calls = %d, want 1", len(calls))
	}
	if calls[0].language != "Go" || calls[0].topic != "Variables" || calls[0].question != "What is :=?" {
		t.Errorf("call = %+v", calls[0])
	}
}

func TestSession_Ask_FailureFallback(t *testing.T) {
	gw := &stubGateway{err: errOffline}
	s := newTestSession(t, gw)
	toDashboard(t, s)

	s.Ask("hi")
	s.Wait()

	st := s.State()
	if len(st.Transcript) != 2 {
		t.Fatalf("Transcript = %v, want 2 entries", st.Transcript)
	}
	if st.Transcript[0] != domain.UserMessage("hi") {
		t.Errorf("Transcript[0] = %+v, want learner question", st.Transcript[0])
	}
	if st.Transcript[1] != domain.ModelMessage(tutor.AskFailure) {
		t.Errorf("Transcript[1] = %+v, want ask fallback", st.Transcript[1])
	}
	if st.Pending {
		t.Error("Pending should be false")
	}
}

func TestSession_Exercise_FailureFallback(t *testing.T) {
	s := newTestSession(t, &stubGateway{err: errOffline})
	toDashboard(t, s)

	snap, ok := s.GenerateExercise()
	if !ok || !snap.PanelVisible {
		t.Fatalf("GenerateExercise() ok = %v, PanelVisible = %v", ok, snap.PanelVisible)
	}
	s.Wait()

	st := s.State()
	if len(st.Transcript) != 2 || st.Transcript[1].Text != tutor.ExerciseFailure {
		t.Errorf("Transcript = %v", st.Transcript)
	}
}

func TestSession_GatewayPanicBecomesFallback(t *testing.T) {
	s := NewSession(Config{ID: "p", Source: testSource(t), Gateway: panicGateway{}})
	toDashboard(t, s)

	s.Ask("hi")
	s.Wait()

	st := s.State()
	if len(st.Transcript) != 2 || st.Transcript[1].Text != tutor.AskFailure {
		t.Errorf("Transcript = %v", st.Transcript)
	}
}

type panicGateway struct{}

func (panicGateway) AskTutor(context.Context, string, string, string, string) (string, error) {
	panic("boom")
}

func (panicGateway) GenerateExercise(context.Context, string, domain.SkillLevel, string) (string, error) {
	panic("boom")
}

func TestSession_NoOpGuards(t *testing.T) {
	gw := &stubGateway{reply: "x"}
	s := newTestSession(t, gw)

	if _, ok := s.Ask("hi"); ok {
		t.Error("Ask on home should be a no-op")
	}
	if _, ok := s.GenerateExercise(); ok {
		t.Error("GenerateExercise on home should be a no-op")
	}

	toDashboard(t, s)
	if _, ok := s.Ask("   "); ok {
		t.Error("blank Ask should be a no-op")
	}

	s.Wait()
	if len(gw.Calls()) != 0 {
		t.Errorf("gateway calls = %d, want 0", len(gw.Calls()))
	}
	if st := s.State(); len(st.Transcript) != 0 || st.Pending {
		t.Errorf("state changed: %+v", st)
	}
}

func TestSession_ConcurrentAsks_ArrivalOrder(t *testing.T) {
	gw := &stubGateway{release: make(chan string)}
	s := newTestSession(t, gw)
	toDashboard(t, s)

	s.Ask("first")
	snap, ok := s.Ask("second")
	if !ok {
		t.Fatal("second Ask while pending should still issue")
	}
	if snap.LatestTask != 2 {
		t.Errorf("LatestTask = %d, want 2", snap.LatestTask)
	}

	waitForCalls(t, gw, 2)
	gw.release <- "reply-a"
	waitForTranscript(t, s, 3)

	if st := s.State(); st.Pending {
		t.Error("first completion clears Pending")
	}

	gw.release <- "reply-b"
	s.Wait()

	st := s.State()
	if len(st.Transcript) != 4 {
		t.Fatalf("Transcript = %v, want 4 entries", st.Transcript)
	}
	if st.Transcript[2].Text != "reply-a" || st.Transcript[3].Text != "reply-b" {
		t.Errorf("replies = %q, %q; want arrival order", st.Transcript[2].Text, st.Transcript[3].Text)
	}
}

func TestSession_StaleReplyAfterNavigation(t *testing.T) {
	gw := &stubGateway{release: make(chan string)}
	s := newTestSession(t, gw)
	toDashboard(t, s)

	s.Ask("hi")
	waitForCalls(t, gw, 1)
	s.GoBack()
	s.GoBack()

	gw.release <- "late"
	s.Wait()

	st := s.State()
	if st.View != ViewHome {
		t.Errorf("View = %v, want home", st.View)
	}
	if len(st.Transcript) != 2 || st.Transcript[1].Text != "late" {
		t.Errorf("Transcript = %v, want stale reply appended", st.Transcript)
	}
}

func TestSession_ClearWhilePending(t *testing.T) {
	gw := &stubGateway{release: make(chan string)}
	s := newTestSession(t, gw)
	toDashboard(t, s)

	s.Ask("hi")
	waitForCalls(t, gw, 1)

	snap := s.ClearTranscript()
	if len(snap.Transcript) != 0 || !snap.Pending {
		t.Errorf("after clear: Transcript = %v, Pending = %v", snap.Transcript, snap.Pending)
	}

	gw.release <- "reply"
	s.Wait()
	if st := s.State(); len(st.Transcript) != 1 || st.Transcript[0].Text != "reply" {
		t.Errorf("Transcript = %v, want only the late reply", st.Transcript)
	}
}

func TestSession_BaseContextNotRequestContext(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	gw := &stubGateway{release: make(chan string)}
	s := NewSession(Config{ID: "ctx", Source: testSource(t), Gateway: gw, BaseContext: base})
	toDashboard(t, s)

	s.Ask("hi")
	waitForCalls(t, gw, 1)
	cancel()
	s.Wait()

	if st := s.State(); st.Transcript[1].Text != tutor.AskFailure {
		t.Errorf("cancelled base context should yield fallback, got %q", st.Transcript[1].Text)
	}
}

func TestSession_Subscribe(t *testing.T) {
	s := newTestSession(t, &stubGateway{reply: "ok"})
	ch, unsubscribe := s.Subscribe()

	s.SelectLanguage("go")
	s.SelectLevel(domain.LevelBeginner)

	select {
	case snap := <-ch:
		if snap.View != ViewDashboard {
			t.Errorf("latest snapshot View = %v, want dashboard", snap.View)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot received")
	}

	s.Ask("hi")
	s.Wait()
	deadline := time.After(time.Second)
	for {
		select {
		case snap := <-ch:
			if !snap.Pending && len(snap.Transcript) == 2 {
				unsubscribe()
				if _, open := <-ch; open {
					t.Error("channel should be closed after unsubscribe")
				}
				return
			}
		case <-deadline:
			t.Fatal("completion snapshot not received")
		}
	}
}

type recordingPublisher struct {
	events chan events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev events.Event) error {
	p.events <- ev
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestSession_PublishesEvents(t *testing.T) {
	pub := &recordingPublisher{events: make(chan events.Event, 16)}
	s := NewSession(Config{ID: "ev", Source: testSource(t), Gateway: &stubGateway{reply: "ok"}, Publisher: pub})
	toDashboard(t, s)
	s.Ask("hi")
	s.Wait()

	var types []string
	for len(pub.events) > 0 {
		ev := <-pub.events
		if ev.SessionID != "ev" {
			t.Errorf("SessionID = %v, want ev", ev.SessionID)
		}
		types = append(types, ev.Type)
	}

	want := []string{events.TypeViewChanged, events.TypeViewChanged, events.TypeTaskIssued, events.TypeTaskCompleted}
	if len(types) != len(want) {
		t.Fatalf("event types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event types = %v, want %v", types, want)
			break
		}
	}
}

func waitForCalls(t *testing.T, gw *stubGateway, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(gw.Calls()) < n {
		if time.Now().After(deadline) {
			t.Fatalf("gateway calls = %d, want %d", len(gw.Calls()), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitForTranscript(t *testing.T, s *Session, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(s.State().Transcript) < n {
		if time.Now().After(deadline) {
			t.Fatalf("transcript len = %d, want %d", len(s.State().Transcript), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
