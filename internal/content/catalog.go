package content

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/felixgeelhaar/polyglot/internal/domain"
)

//go:embed data/*.yaml
var embedded embed.FS

// ErrDuplicateLanguage is returned when two files declare the same language ID
var ErrDuplicateLanguage = errors.New("duplicate language")

// LevelAvailability describes whether a level can be entered for a language
type LevelAvailability struct {
	Level   domain.SkillLevel `json:"level"`
	Enabled bool              `json:"enabled"`
	Topics  int               `json:"topics"`
	Lessons int               `json:"lessons"`
}

// Catalog is the in-memory content store. It is safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]Entry
}

// NewCatalog builds a catalog from parsed entries, keeping their order
func NewCatalog(entries []Entry) (*Catalog, error) {
	c := &Catalog{}
	if err := c.Replace(entries); err != nil {
		return nil, err
	}
	return c, nil
}

// Load builds a catalog from a loader
func Load(loader *Loader) (*Catalog, error) {
	entries, err := loader.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	return NewCatalog(entries)
}

// LoadDefault builds the catalog from the curriculum compiled into the binary
func LoadDefault() (*Catalog, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, fmt.Errorf("open embedded content: %w", err)
	}
	return Load(NewFSLoader(sub))
}

// Open loads content from path, or the embedded curriculum when path is empty
func Open(path string) (*Catalog, error) {
	if path == "" {
		return LoadDefault()
	}
	return Load(NewLoader(path))
}

// Replace swaps the catalog contents atomically
func (c *Catalog) Replace(entries []Entry) error {
	order := make([]string, 0, len(entries))
	byID := make(map[string]Entry, len(entries))
	for _, e := range entries {
		if _, dup := byID[e.Language.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateLanguage, e.Language.ID)
		}
		byID[e.Language.ID] = e
		order = append(order, e.Language.ID)
	}

	c.mu.Lock()
	c.order = order
	c.entries = byID
	c.mu.Unlock()
	return nil
}

// Languages returns all languages in catalogue order
func (c *Catalog) Languages() []domain.Language {
	c.mu.RLock()
	defer c.mu.RUnlock()

	langs := make([]domain.Language, 0, len(c.order))
	for _, id := range c.order {
		langs = append(langs, c.entries[id].Language)
	}
	return langs
}

// Language returns a language by ID
func (c *Catalog) Language(id string) (domain.Language, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	return e.Language, ok
}

// ContentFor looks up the course for a language at a level
func (c *Catalog) ContentFor(languageID string, level domain.SkillLevel) Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[languageID]
	if !ok {
		return Absent()
	}
	course, ok := e.Courses[level]
	if !ok {
		return Absent()
	}
	return Found(course)
}

// Availability reports, for each level in order, whether content exists
func (c *Catalog) Availability(languageID string) []LevelAvailability {
	levels := domain.SkillLevels()
	out := make([]LevelAvailability, 0, len(levels))
	for _, level := range levels {
		av := LevelAvailability{Level: level}
		if course, ok := c.ContentFor(languageID, level).Get(); ok {
			av.Enabled = true
			av.Topics = len(course.Topics)
			av.Lessons = course.SubTopicCount()
		}
		out = append(out, av)
	}
	return out
}

// Count returns the number of languages
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}
