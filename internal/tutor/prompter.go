package tutor

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/polyglot/internal/domain"
)

// Prompter builds prompts for the tutor model
type Prompter struct{}

// NewPrompter creates a new prompter
func NewPrompter() *Prompter {
	return &Prompter{}
}

// SystemPrompt returns the tutor persona
func (p *Prompter) SystemPrompt() string {
	return "You are a friendly, encouraging coding tutor. " +
		"Keep answers concise (under 200 words) unless detailed code is needed."
}

// AskPrompt builds the prompt for a free-form learner question
func (p *Prompter) AskPrompt(language, topic, codeContext, question string) string {
	var sb strings.Builder

	sb.WriteString("You are an expert programming tutor.\n")
	fmt.Fprintf(&sb, "The student is learning %s.\n", language)
	fmt.Fprintf(&sb, "Current Topic: %s.\n\n", topic)

	sb.WriteString("Code Context:\n```\n")
	sb.WriteString(codeContext)
	sb.WriteString("\n```\n\n")

	fmt.Fprintf(&sb, "Student Question: \"%s\"\n\n", question)

	sb.WriteString("Please provide a clear, concise, and helpful explanation. Use Markdown for formatting. ")
	sb.WriteString("If the student asks for a solution, guide them rather than giving the answer directly if it's an exercise.")

	return sb.String()
}

// ExercisePrompt builds the prompt for a fresh practice exercise
func (p *Prompter) ExercisePrompt(language string, level domain.SkillLevel, topic string) string {
	return fmt.Sprintf(
		"Generate a new, unique, short coding exercise for %s (%s level) regarding the topic \"%s\". "+
			"Include a brief problem statement and expected output. Do not provide the solution code.",
		language, level, topic,
	)
}
