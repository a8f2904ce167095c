package content

import "github.com/felixgeelhaar/polyglot/internal/domain"

// Result is the outcome of a course lookup. A zero Result is Absent.
type Result struct {
	course domain.CourseData
	found  bool
}

// Found wraps an authored course
func Found(course domain.CourseData) Result {
	return Result{course: course, found: true}
}

// Absent marks a language/level pair with no authored content
func Absent() Result {
	return Result{}
}

// Get unpacks the result
func (r Result) Get() (domain.CourseData, bool) {
	return r.course, r.found
}

// Source is the read-only content boundary consumed by viewer sessions
type Source interface {
	Language(id string) (domain.Language, bool)
	ContentFor(languageID string, level domain.SkillLevel) Result
}
