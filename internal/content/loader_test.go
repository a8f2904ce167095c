package content

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/felixgeelhaar/polyglot/internal/domain"
)

const rustYAML = `
id: rust
name: Rust
description: Memory safety without garbage collection.
color: from-orange-500 to-red-600
icon: Rust
order: 2
levels:
  beginner:
    introduction: Ownership first.
    topics:
      - id: rs-1
        title: Basics
        subtopics:
          - id: rs-1-1
            title: Hello
            content: Use println!
            code_examples:
              - title: Hello
                code: fn main() { println!("hi"); }
            exercise: Print your name.
          - id: rs-1-2
            title: Variables
            content: let bindings
      - id: rs-2
        title: Empty topic
`

func TestParse(t *testing.T) {
	entry, err := Parse([]byte(rustYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if entry.Language.ID != "rust" || entry.Language.Name != "Rust" {
		t.Errorf("Language = %+v", entry.Language)
	}
	if entry.Order != 2 {
		t.Errorf("Order = %d, want 2", entry.Order)
	}

	course, ok := entry.Courses[domain.LevelBeginner]
	if !ok {
		t.Fatal("Beginner course missing")
	}
	if len(entry.Courses) != 1 {
		t.Errorf("len(Courses) = %d, want 1", len(entry.Courses))
	}
	if course.Introduction != "Ownership first." {
		t.Errorf("Introduction = %q", course.Introduction)
	}
	if len(course.Topics) != 2 {
		t.Fatalf("len(Topics) = %d, want 2", len(course.Topics))
	}
	if got := course.Topics[0].SubTopics[0].CodeExamples[0].Title; got != "Hello" {
		t.Errorf("first example title = %q, want Hello", got)
	}
	if len(course.Topics[1].SubTopics) != 0 {
		t.Errorf("empty topic has %d subtopics", len(course.Topics[1].SubTopics))
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{
			name:    "missing id",
			data:    "name: Nameless\n",
			wantErr: domain.ErrInvalidContent,
		},
		{
			name:    "unknown level",
			data:    "id: x\nlevels:\n  Expert:\n    topics: []\n",
			wantErr: domain.ErrInvalidLevel,
		},
		{
			name: "duplicate subtopic",
			data: `
id: x
levels:
  Beginner:
    topics:
      - id: t
        subtopics:
          - id: s
          - id: s
`,
			wantErr: domain.ErrDuplicateID,
		},
		{
			name: "subtopic reused across topics",
			data: `
id: x
levels:
  Beginner:
    topics:
      - id: basics
        subtopics:
          - id: intro
      - id: loops
        subtopics:
          - id: intro
`,
			wantErr: domain.ErrDuplicateID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("id: [unclosed")); err == nil {
		t.Error("Parse() should fail on invalid YAML")
	}
}

func TestLoader_LoadAll(t *testing.T) {
	fsys := fstest.MapFS{
		"rust.yaml":  {Data: []byte(rustYAML)},
		"zig.yml":    {Data: []byte("id: zig\nname: Zig\norder: 1\n")},
		"abc.yaml":   {Data: []byte("id: abc\nname: ABC\norder: 1\n")},
		"README.md":  {Data: []byte("ignored")},
		"nested/x.y": {Data: []byte("ignored")},
	}

	entries, err := NewFSLoader(fsys).LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}

	want := []string{"abc", "zig", "rust"}
	if len(entries) != len(want) {
		t.Fatalf("len(entries) = %d, want %d", len(entries), len(want))
	}
	for i, id := range want {
		if entries[i].Language.ID != id {
			t.Errorf("entries[%d] = %s, want %s", i, entries[i].Language.ID, id)
		}
	}
}

func TestLoader_LoadAll_PropagatesErrors(t *testing.T) {
	fsys := fstest.MapFS{
		"ok.yaml":  {Data: []byte("id: ok\n")},
		"bad.yaml": {Data: []byte("name: no id\n")},
	}

	if _, err := NewFSLoader(fsys).LoadAll(); !errors.Is(err, domain.ErrInvalidContent) {
		t.Errorf("LoadAll() error = %v, want ErrInvalidContent", err)
	}
}

func TestNewLoader_Directory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "rust.yaml"), []byte(rustYAML), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err := NewLoader(dir).LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Language.ID != "rust" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestNewLoader_MissingDirectory(t *testing.T) {
	if _, err := NewLoader(filepath.Join(t.TempDir(), "missing")).LoadAll(); err == nil {
		t.Error("LoadAll() should fail for missing directory")
	}
}
