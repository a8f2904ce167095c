package domain

import (
	"fmt"
	"strings"
)

// Language is a programming language offered by the curriculum
type Language struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"` // visual theme reference, e.g. "from-cyan-500 to-blue-500"
	Icon        string `json:"icon"`
}

// SkillLevel represents the depth of a course
type SkillLevel string

const (
	LevelBeginner     SkillLevel = "Beginner"
	LevelIntermediate SkillLevel = "Intermediate"
	LevelAdvanced     SkillLevel = "Advanced"
)

// SkillLevels returns all levels in presentation order
func SkillLevels() []SkillLevel {
	return []SkillLevel{LevelBeginner, LevelIntermediate, LevelAdvanced}
}

// ParseSkillLevel parses a level name case-insensitively
func ParseSkillLevel(s string) (SkillLevel, error) {
	for _, level := range SkillLevels() {
		if strings.EqualFold(string(level), strings.TrimSpace(s)) {
			return level, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}

// CodeExample is a titled code sample attached to a subtopic
type CodeExample struct {
	Title string `json:"title"`
	Code  string `json:"code"`
}

// SubTopic is the smallest addressable lesson unit
type SubTopic struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Content      string        `json:"content"` // markdown
	CodeExamples []CodeExample `json:"code_examples"`
	Exercise     string        `json:"exercise"`
}

// CodeContext concatenates the code examples into the context block sent to the tutor
func (s SubTopic) CodeContext() string {
	parts := make([]string, 0, len(s.CodeExamples))
	for _, ex := range s.CodeExamples {
		parts = append(parts, fmt.Sprintf("// Example: %s\n%s", ex.Title, ex.Code))
	}
	return strings.Join(parts, "\n\n")
}

// Topic groups subtopics in the lesson sidebar
type Topic struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	SubTopics []SubTopic `json:"sub_topics"`
}

// FirstSubTopic returns the first subtopic, if any
func (t Topic) FirstSubTopic() (SubTopic, bool) {
	if len(t.SubTopics) == 0 {
		return SubTopic{}, false
	}
	return t.SubTopics[0], true
}

// CourseData is the authored content for one language at one level
type CourseData struct {
	Introduction string  `json:"introduction"`
	Topics       []Topic `json:"topics"`
}

// FirstTopic returns the first topic, if any
func (c CourseData) FirstTopic() (Topic, bool) {
	if len(c.Topics) == 0 {
		return Topic{}, false
	}
	return c.Topics[0], true
}

// FindSubTopic locates a subtopic by ID along with its parent topic
func (c CourseData) FindSubTopic(id string) (SubTopic, Topic, bool) {
	for _, topic := range c.Topics {
		for _, sub := range topic.SubTopics {
			if sub.ID == id {
				return sub, topic, true
			}
		}
	}
	return SubTopic{}, Topic{}, false
}

// HasTopic reports whether a topic with the given ID exists
func (c CourseData) HasTopic(id string) bool {
	for _, topic := range c.Topics {
		if topic.ID == id {
			return true
		}
	}
	return false
}

// SubTopicCount returns the number of lessons across all topics
func (c CourseData) SubTopicCount() int {
	n := 0
	for _, topic := range c.Topics {
		n += len(topic.SubTopics)
	}
	return n
}

// Validate checks that topic IDs are unique and that subtopic IDs are unique
// across the whole course, since lessons are addressed by subtopic ID alone
func (c CourseData) Validate() error {
	topicIDs := make(map[string]struct{}, len(c.Topics))
	subTopics := make(map[string]string, c.SubTopicCount())
	for _, topic := range c.Topics {
		if topic.ID == "" {
			return fmt.Errorf("%w: topic %q has no id", ErrInvalidContent, topic.Title)
		}
		if _, dup := topicIDs[topic.ID]; dup {
			return fmt.Errorf("%w: topic %s", ErrDuplicateID, topic.ID)
		}
		topicIDs[topic.ID] = struct{}{}

		for _, sub := range topic.SubTopics {
			if sub.ID == "" {
				return fmt.Errorf("%w: subtopic %q in topic %s has no id", ErrInvalidContent, sub.Title, topic.ID)
			}
			if owner, dup := subTopics[sub.ID]; dup {
				return fmt.Errorf("%w: subtopic %s in topic %s, already used in topic %s", ErrDuplicateID, sub.ID, topic.ID, owner)
			}
			subTopics[sub.ID] = topic.ID
		}
	}
	return nil
}
