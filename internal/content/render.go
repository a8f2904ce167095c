package content

import (
	"bytes"
	"fmt"

	"github.com/felixgeelhaar/polyglot/internal/domain"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Renderer converts lesson markdown to HTML
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer creates a renderer with GFM and syntax highlighting
func NewRenderer(style string) *Renderer {
	if style == "" {
		style = "monokai"
	}
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(
					highlighting.WithStyle(style),
				),
			),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
			goldmark.WithRendererOptions(
				gmhtml.WithHardWraps(),
			),
		),
	}
}

// Render converts markdown to HTML
func (r *Renderer) Render(source string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// RenderedSubTopic is a lesson with its prose and examples rendered to HTML
type RenderedSubTopic struct {
	SubTopic     domain.SubTopic `json:"sub_topic"`
	ContentHTML  string          `json:"content_html"`
	ExamplesHTML []string        `json:"examples_html"`
}

// RenderSubTopic renders a lesson, highlighting examples in the given language
func (r *Renderer) RenderSubTopic(languageID string, sub domain.SubTopic) (RenderedSubTopic, error) {
	out := RenderedSubTopic{SubTopic: sub}

	body, err := r.Render(sub.Content)
	if err != nil {
		return RenderedSubTopic{}, err
	}
	out.ContentHTML = body

	for _, ex := range sub.CodeExamples {
		fenced := fmt.Sprintf("#### %s\n\n```%s\n%s\n```\n", ex.Title, fenceLang(languageID), ex.Code)
		rendered, err := r.Render(fenced)
		if err != nil {
			return RenderedSubTopic{}, err
		}
		out.ExamplesHTML = append(out.ExamplesHTML, rendered)
	}
	return out, nil
}

func fenceLang(languageID string) string {
	switch languageID {
	case "cpp":
		return "c++"
	case "":
		return "text"
	default:
		return languageID
	}
}
