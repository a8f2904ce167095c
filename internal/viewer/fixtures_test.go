package viewer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/felixgeelhaar/polyglot/internal/content"
	"github.com/felixgeelhaar/polyglot/internal/domain"
)

var (
	goLang = domain.Language{ID: "go", Name: "Go"}
	cLang  = domain.Language{ID: "c", Name: "C"}
)

// testSource builds a catalog where Go has a normal Beginner course, an
// Intermediate course whose first topic is empty, and an Advanced course with
// no topics. C only has Beginner.
func testSource(t *testing.T) *content.Catalog {
	t.Helper()

	beginner := domain.CourseData{
		Introduction: "Simple, reliable, efficient.",
		Topics: []domain.Topic{
			{ID: "core", Title: "Core", SubTopics: []domain.SubTopic{
				{ID: "vars", Title: "Variables", Content: "Use :=", CodeExamples: []domain.CodeExample{
					{Title: "Short", Code: "x := 1"},
					{Title: "Const", Code: "const Pi = 3.14"},
				}},
				{ID: "loops", Title: "Loops", Content: "Only for"},
			}},
			{ID: "types", Title: "Types", SubTopics: []domain.SubTopic{
				{ID: "structs", Title: "Structs"},
			}},
		},
	}
	intermediate := domain.CourseData{
		Topics: []domain.Topic{
			{ID: "empty", Title: "Coming soon"},
			{ID: "maps", Title: "Maps", SubTopics: []domain.SubTopic{{ID: "m1", Title: "Maps"}}},
		},
	}

	cat, err := content.NewCatalog([]content.Entry{
		{Language: goLang, Courses: map[domain.SkillLevel]domain.CourseData{
			domain.LevelBeginner:     beginner,
			domain.LevelIntermediate: intermediate,
			domain.LevelAdvanced:     {},
		}},
		{Language: cLang, Courses: map[domain.SkillLevel]domain.CourseData{
			domain.LevelBeginner: {Topics: []domain.Topic{{ID: "c1", SubTopics: []domain.SubTopic{{ID: "c1-1", Title: "Main"}}}}},
		}},
	})
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	return cat
}

// call records one gateway invocation
type call struct {
	kind        string
	language    string
	level       domain.SkillLevel
	topic       string
	codeContext string
	question    string
}

// stubGateway answers with reply or err. When release is set, each call
// blocks until a value is received from it.
type stubGateway struct {
	mu      sync.Mutex
	calls   []call
	reply   string
	err     error
	release chan string
}

func (g *stubGateway) record(c call) {
	g.mu.Lock()
	g.calls = append(g.calls, c)
	g.mu.Unlock()
}

func (g *stubGateway) Calls() []call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]call(nil), g.calls...)
}

func (g *stubGateway) answer(ctx context.Context) (string, error) {
	if g.release != nil {
		select {
		case r := <-g.release:
			return r, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return g.reply, g.err
}

func (g *stubGateway) AskTutor(ctx context.Context, language, topic, codeContext, question string) (string, error) {
	g.record(call{kind: "ask", language: language, topic: topic, codeContext: codeContext, question: question})
	return g.answer(ctx)
}

func (g *stubGateway) GenerateExercise(ctx context.Context, language string, level domain.SkillLevel, topic string) (string, error) {
	g.record(call{kind: "exercise", language: language, level: level, topic: topic})
	return g.answer(ctx)
}

var errOffline = errors.New("offline")

// dashboardState walks a fresh state to the Go Beginner dashboard
func dashboardState(t *testing.T, src content.Source) State {
	t.Helper()
	s, ok := SelectLanguage(NewState(), goLang)
	if !ok {
		t.Fatal("SelectLanguage not applied")
	}
	s, ok = SelectLevel(s, src, domain.LevelBeginner)
	if !ok {
		t.Fatal("SelectLevel not applied")
	}
	return s
}
