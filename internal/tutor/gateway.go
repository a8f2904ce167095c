package tutor

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/polyglot/internal/domain"
	"github.com/felixgeelhaar/polyglot/internal/llm"
)

// Gateway is the boundary to the hosted tutor model. Each call is a single
// request with a single text answer.
type Gateway interface {
	AskTutor(ctx context.Context, language, topic, codeContext, question string) (string, error)
	GenerateExercise(ctx context.Context, language string, level domain.SkillLevel, topic string) (string, error)
}

// Kind identifies which tutor operation a task performs
type Kind string

const (
	KindAsk      Kind = "ask"
	KindExercise Kind = "exercise"
)

// Fixed replies shown to the learner
const (
	AskFailure         = "Sorry, I'm having trouble connecting to the AI tutor right now. Please try again later."
	AskEmpty           = "I couldn't generate a response at this time."
	ExerciseFailure    = "Failed to generate new exercise."
	ExerciseEmpty      = "Could not generate exercise."
	ExerciseUserPrompt = "Generate a new practice exercise for me."
)

// FailureReply returns the text appended when a task of the given kind fails
func FailureReply(kind Kind) string {
	if kind == KindExercise {
		return ExerciseFailure
	}
	return AskFailure
}

// Options tune generation parameters
type Options struct {
	Provider    string // empty selects the registry default
	MaxTokens   int
	Temperature float64
}

// DefaultOptions returns the generation defaults
func DefaultOptions() Options {
	return Options{
		MaxTokens:   1024,
		Temperature: 0.7,
	}
}

// Service implements Gateway over an LLM provider registry
type Service struct {
	registry llm.LLMRegistry
	prompter *Prompter
	opts     Options
}

var _ Gateway = (*Service)(nil)

// NewService creates a new tutor service
func NewService(registry llm.LLMRegistry, opts Options) *Service {
	return &Service{
		registry: registry,
		prompter: NewPrompter(),
		opts:     opts,
	}
}

// AskTutor answers a learner question about the current lesson
func (s *Service) AskTutor(ctx context.Context, language, topic, codeContext, question string) (string, error) {
	prompt := s.prompter.AskPrompt(language, topic, codeContext, question)
	reply, err := s.generate(ctx, s.prompter.SystemPrompt(), prompt)
	if err != nil {
		return "", fmt.Errorf("ask tutor: %w", err)
	}
	if reply == "" {
		return AskEmpty, nil
	}
	return reply, nil
}

// GenerateExercise asks the model for a new practice exercise
func (s *Service) GenerateExercise(ctx context.Context, language string, level domain.SkillLevel, topic string) (string, error) {
	prompt := s.prompter.ExercisePrompt(language, level, topic)
	// exercises go out without the tutor persona
	reply, err := s.generate(ctx, "", prompt)
	if err != nil {
		return "", fmt.Errorf("generate exercise: %w", err)
	}
	if reply == "" {
		return ExerciseEmpty, nil
	}
	return reply, nil
}

func (s *Service) generate(ctx context.Context, system, prompt string) (string, error) {
	provider, err := s.provider()
	if err != nil {
		return "", fmt.Errorf("get LLM provider: %w", err)
	}

	resp, err := provider.Generate(ctx, &llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: prompt},
		},
		System:      system,
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

func (s *Service) provider() (llm.Provider, error) {
	if s.opts.Provider != "" {
		return s.registry.Get(s.opts.Provider)
	}
	return s.registry.Default()
}
