package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"
	"github.com/felixgeelhaar/polyglot/internal/content"
	"github.com/felixgeelhaar/polyglot/internal/domain"
	"github.com/felixgeelhaar/polyglot/internal/tutor"
)

// ErrQuestionRequired is returned by polyglot_ask for blank questions
var ErrQuestionRequired = errors.New("question is required")

// Server exposes the curriculum and tutor to MCP clients
type Server struct {
	mcpServer *server.Server
	catalog   *content.Catalog
	gateway   tutor.Gateway
	logger    *slog.Logger
}

// Config contains configuration for the MCP server
type Config struct {
	Catalog *content.Catalog
	Gateway tutor.Gateway
	Logger  *slog.Logger
}

// NewServer creates a new MCP server for Polyglot
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		catalog: cfg.Catalog,
		gateway: cfg.Gateway,
		logger:  logger,
	}

	s.mcpServer = server.New(server.Info{
		Name:    "polyglot",
		Version: "0.1.0",
	}, server.WithInstructions(`
Polyglot is a coding curriculum with an AI tutor.
Courses are organised as language -> level (Beginner, Intermediate, Advanced) -> topic -> lesson.

Available tools:
- polyglot_languages: List languages and which levels have content
- polyglot_course: Show the topics and lessons of one course
- polyglot_lesson: Read a lesson with its code examples and exercise
- polyglot_ask: Ask the tutor about a lesson
- polyglot_exercise: Get a fresh practice exercise for a lesson

The tutor guides rather than solves: expect hints, not finished code.
`))

	s.registerTools()
	return s
}

// registerTools registers all Polyglot MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("polyglot_languages").
		Description("List available languages and the levels that have content.").
		Handler(s.handleLanguages)

	s.mcpServer.Tool("polyglot_course").
		Description("Show the introduction, topics and lessons of a course.").
		Handler(s.handleCourse)

	s.mcpServer.Tool("polyglot_lesson").
		Description("Read a lesson. Defaults to the first lesson of the course.").
		Handler(s.handleLesson)

	s.mcpServer.Tool("polyglot_ask").
		Description("Ask the AI tutor a question in the context of a lesson.").
		Handler(s.handleAsk)

	s.mcpServer.Tool("polyglot_exercise").
		Description("Generate a new practice exercise for a lesson.").
		Handler(s.handleExercise)
}

// Input/Output types for tools

type LanguagesInput struct{}

type LanguageSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Levels      []string `json:"levels"`
}

type LanguagesOutput struct {
	Languages []LanguageSummary `json:"languages"`
}

type CourseInput struct {
	Language string `json:"language" jsonschema:"description=Language ID such as go or python"`
	Level    string `json:"level" jsonschema:"description=Skill level,enum=Beginner,enum=Intermediate,enum=Advanced"`
}

type LessonRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type TopicSummary struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Lessons []LessonRef `json:"lessons"`
}

type CourseOutput struct {
	Language     string         `json:"language"`
	Level        string         `json:"level"`
	Introduction string         `json:"introduction"`
	Topics       []TopicSummary `json:"topics"`
}

type LessonInput struct {
	Language   string `json:"language" jsonschema:"description=Language ID such as go or python"`
	Level      string `json:"level" jsonschema:"description=Skill level,enum=Beginner,enum=Intermediate,enum=Advanced"`
	SubTopicID string `json:"subtopic_id,omitempty" jsonschema:"description=Lesson ID from polyglot_course (default: first lesson)"`
}

type LessonOutput struct {
	ID           string               `json:"id"`
	Title        string               `json:"title"`
	TopicID      string               `json:"topic_id"`
	TopicTitle   string               `json:"topic_title"`
	Content      string               `json:"content"`
	CodeExamples []domain.CodeExample `json:"code_examples"`
	Exercise     string               `json:"exercise,omitempty"`
}

type AskInput struct {
	Language   string `json:"language" jsonschema:"description=Language ID such as go or python"`
	Level      string `json:"level" jsonschema:"description=Skill level,enum=Beginner,enum=Intermediate,enum=Advanced"`
	SubTopicID string `json:"subtopic_id,omitempty" jsonschema:"description=Lesson ID from polyglot_course (default: first lesson)"`
	Question   string `json:"question" jsonschema:"description=What the learner wants to know"`
}

type TutorOutput struct {
	Lesson   string `json:"lesson"`
	Reply    string `json:"reply"`
	Fallback bool   `json:"fallback"` // true when the tutor could not be reached
}

// Tool handlers

func (s *Server) handleLanguages(ctx context.Context, _ LanguagesInput) (LanguagesOutput, error) {
	langs := s.catalog.Languages()
	out := LanguagesOutput{Languages: make([]LanguageSummary, 0, len(langs))}

	for _, lang := range langs {
		summary := LanguageSummary{
			ID:          lang.ID,
			Name:        lang.Name,
			Description: lang.Description,
			Levels:      []string{},
		}
		for _, avail := range s.catalog.Availability(lang.ID) {
			if avail.Enabled {
				summary.Levels = append(summary.Levels, string(avail.Level))
			}
		}
		out.Languages = append(out.Languages, summary)
	}
	return out, nil
}

func (s *Server) handleCourse(ctx context.Context, input CourseInput) (CourseOutput, error) {
	_, level, course, err := s.course(input.Language, input.Level)
	if err != nil {
		return CourseOutput{}, err
	}

	out := CourseOutput{
		Language:     input.Language,
		Level:        string(level),
		Introduction: course.Introduction,
		Topics:       make([]TopicSummary, 0, len(course.Topics)),
	}
	for _, topic := range course.Topics {
		summary := TopicSummary{ID: topic.ID, Title: topic.Title, Lessons: []LessonRef{}}
		for _, sub := range topic.SubTopics {
			summary.Lessons = append(summary.Lessons, LessonRef{ID: sub.ID, Title: sub.Title})
		}
		out.Topics = append(out.Topics, summary)
	}
	return out, nil
}

func (s *Server) handleLesson(ctx context.Context, input LessonInput) (LessonOutput, error) {
	_, _, sub, topic, err := s.lesson(input)
	if err != nil {
		return LessonOutput{}, err
	}
	return LessonOutput{
		ID:           sub.ID,
		Title:        sub.Title,
		TopicID:      topic.ID,
		TopicTitle:   topic.Title,
		Content:      sub.Content,
		CodeExamples: sub.CodeExamples,
		Exercise:     sub.Exercise,
	}, nil
}

func (s *Server) handleAsk(ctx context.Context, input AskInput) (TutorOutput, error) {
	if strings.TrimSpace(input.Question) == "" {
		return TutorOutput{}, ErrQuestionRequired
	}

	lang, _, sub, _, err := s.lesson(LessonInput{
		Language:   input.Language,
		Level:      input.Level,
		SubTopicID: input.SubTopicID,
	})
	if err != nil {
		return TutorOutput{}, err
	}

	reply, err := s.gateway.AskTutor(ctx, lang.Name, sub.Title, sub.CodeContext(), input.Question)
	return s.tutorOutput(tutor.KindAsk, sub, reply, err), nil
}

func (s *Server) handleExercise(ctx context.Context, input LessonInput) (TutorOutput, error) {
	lang, level, sub, _, err := s.lesson(input)
	if err != nil {
		return TutorOutput{}, err
	}

	reply, err := s.gateway.GenerateExercise(ctx, lang.Name, level, sub.Title)
	return s.tutorOutput(tutor.KindExercise, sub, reply, err), nil
}

// tutorOutput substitutes the fixed failure reply; gateway errors are logged,
// never returned to the client
func (s *Server) tutorOutput(kind tutor.Kind, sub domain.SubTopic, reply string, err error) TutorOutput {
	if err != nil {
		s.logger.Warn("tutor call failed", "kind", kind, "lesson", sub.ID, "error", err)
		return TutorOutput{Lesson: sub.ID, Reply: tutor.FailureReply(kind), Fallback: true}
	}
	return TutorOutput{Lesson: sub.ID, Reply: reply}
}

func (s *Server) course(languageID, rawLevel string) (domain.Language, domain.SkillLevel, domain.CourseData, error) {
	lang, ok := s.catalog.Language(languageID)
	if !ok {
		return domain.Language{}, "", domain.CourseData{}, fmt.Errorf("%w: %s", domain.ErrLanguageNotFound, languageID)
	}
	level, err := domain.ParseSkillLevel(rawLevel)
	if err != nil {
		return domain.Language{}, "", domain.CourseData{}, err
	}
	course, found := s.catalog.ContentFor(lang.ID, level).Get()
	if !found {
		return domain.Language{}, "", domain.CourseData{}, fmt.Errorf("no %s course for %s", level, lang.Name)
	}
	return lang, level, course, nil
}

// lesson resolves the requested subtopic, defaulting to the first lesson of
// the first topic
func (s *Server) lesson(input LessonInput) (domain.Language, domain.SkillLevel, domain.SubTopic, domain.Topic, error) {
	lang, level, course, err := s.course(input.Language, input.Level)
	if err != nil {
		return domain.Language{}, "", domain.SubTopic{}, domain.Topic{}, err
	}

	if input.SubTopicID == "" {
		topic, ok := course.FirstTopic()
		if !ok {
			return domain.Language{}, "", domain.SubTopic{}, domain.Topic{}, fmt.Errorf("%s %s course has no lessons yet", lang.Name, level)
		}
		sub, ok := topic.FirstSubTopic()
		if !ok {
			return domain.Language{}, "", domain.SubTopic{}, domain.Topic{}, fmt.Errorf("%s %s course has no lessons yet", lang.Name, level)
		}
		return lang, level, sub, topic, nil
	}

	sub, topic, found := course.FindSubTopic(input.SubTopicID)
	if !found {
		return domain.Language{}, "", domain.SubTopic{}, domain.Topic{}, fmt.Errorf("%w: %s", domain.ErrSubTopicNotFound, input.SubTopicID)
	}
	return lang, level, sub, topic, nil
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
