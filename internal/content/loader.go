package content

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/felixgeelhaar/polyglot/internal/domain"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// LanguageFile represents the YAML structure for one language's curriculum
type LanguageFile struct {
	ID          string               `yaml:"id"`
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	Color       string               `yaml:"color"`
	Icon        string               `yaml:"icon"`
	Order       int                  `yaml:"order"`
	Levels      map[string]LevelFile `yaml:"levels"`
}

// LevelFile is the course body for one skill level
type LevelFile struct {
	Introduction string      `yaml:"introduction"`
	Topics       []TopicFile `yaml:"topics"`
}

// TopicFile is a topic group in YAML form
type TopicFile struct {
	ID        string         `yaml:"id"`
	Title     string         `yaml:"title"`
	SubTopics []SubTopicFile `yaml:"subtopics"`
}

// SubTopicFile is a lesson in YAML form
type SubTopicFile struct {
	ID           string `yaml:"id"`
	Title        string `yaml:"title"`
	Content      string `yaml:"content"`
	CodeExamples []struct {
		Title string `yaml:"title"`
		Code  string `yaml:"code"`
	} `yaml:"code_examples"`
	Exercise string `yaml:"exercise"`
}

// Entry is a fully parsed language with its courses keyed by level
type Entry struct {
	Language domain.Language
	Order    int
	Courses  map[domain.SkillLevel]domain.CourseData
}

// Loader reads curriculum files from a filesystem
type Loader struct {
	fsys fs.FS
}

// NewLoader creates a loader rooted at a directory on disk
func NewLoader(basePath string) *Loader {
	return &Loader{fsys: os.DirFS(basePath)}
}

// NewFSLoader creates a loader over an arbitrary filesystem
func NewFSLoader(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys}
}

// LoadAll parses every *.yaml / *.yml file at the root of the filesystem
func (l *Loader) LoadAll() ([]Entry, error) {
	dirEntries, err := fs.ReadDir(l.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read content dir: %w", err)
	}

	var names []string
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		ext := path.Ext(de.Name())
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, de.Name())
		}
	}

	entries := make([]Entry, len(names))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			entry, err := l.LoadFile(name)
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Order != entries[j].Order {
			return entries[i].Order < entries[j].Order
		}
		return entries[i].Language.ID < entries[j].Language.ID
	})
	return entries, nil
}

// LoadFile parses a single language file
func (l *Loader) LoadFile(name string) (Entry, error) {
	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return Entry{}, fmt.Errorf("read language file %s: %w", name, err)
	}
	return Parse(data)
}

// Parse decodes one language file and validates it
func Parse(data []byte) (Entry, error) {
	var file LanguageFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Entry{}, fmt.Errorf("parse language file: %w", err)
	}
	if strings.TrimSpace(file.ID) == "" {
		return Entry{}, fmt.Errorf("%w: language has no id", domain.ErrInvalidContent)
	}

	entry := Entry{
		Language: domain.Language{
			ID:          file.ID,
			Name:        file.Name,
			Description: file.Description,
			Color:       file.Color,
			Icon:        file.Icon,
		},
		Order:   file.Order,
		Courses: make(map[domain.SkillLevel]domain.CourseData, len(file.Levels)),
	}
	if entry.Language.Name == "" {
		entry.Language.Name = file.ID
	}

	for key, lf := range file.Levels {
		level, err := domain.ParseSkillLevel(key)
		if err != nil {
			return Entry{}, fmt.Errorf("language %s: %w", file.ID, err)
		}
		course := lf.toCourse()
		if err := course.Validate(); err != nil {
			return Entry{}, fmt.Errorf("language %s level %s: %w", file.ID, level, err)
		}
		entry.Courses[level] = course
	}

	return entry, nil
}

func (lf LevelFile) toCourse() domain.CourseData {
	course := domain.CourseData{
		Introduction: strings.TrimSpace(lf.Introduction),
		Topics:       make([]domain.Topic, 0, len(lf.Topics)),
	}
	for _, tf := range lf.Topics {
		topic := domain.Topic{
			ID:        tf.ID,
			Title:     tf.Title,
			SubTopics: make([]domain.SubTopic, 0, len(tf.SubTopics)),
		}
		for _, sf := range tf.SubTopics {
			sub := domain.SubTopic{
				ID:           sf.ID,
				Title:        sf.Title,
				Content:      sf.Content,
				Exercise:     sf.Exercise,
				CodeExamples: make([]domain.CodeExample, 0, len(sf.CodeExamples)),
			}
			for _, ex := range sf.CodeExamples {
				sub.CodeExamples = append(sub.CodeExamples, domain.CodeExample{Title: ex.Title, Code: ex.Code})
			}
			topic.SubTopics = append(topic.SubTopics, sub)
		}
		course.Topics = append(course.Topics, topic)
	}
	return course
}
