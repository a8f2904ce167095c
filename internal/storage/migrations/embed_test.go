package migrations

import (
	"testing"
	"testing/fstest"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"001_preferences.sql", 1, false},
		{"010_something.sql", 10, false},
		{"notaversion.sql", 0, true},
		{"abc_x.sql", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseVersion(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseVersion(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseVersion(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"010_b.sql":  {Data: []byte("")},
		"002_a.sql":  {Data: []byte("")},
		"README.md":  {Data: []byte("")},
		"README.sql": {Data: []byte("")},
	}

	files, err := Files(fsys)
	if err != nil {
		t.Fatalf("Files() error = %v", err)
	}
	if len(files) != 2 || files[0].Version != 2 || files[1].Version != 10 {
		t.Errorf("Files() = %+v", files)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := Files(FS)
	if err != nil {
		t.Fatalf("Files(FS) error = %v", err)
	}
	if len(files) == 0 || files[0].Name != "001_preferences.sql" {
		t.Errorf("Files(FS) = %+v", files)
	}
}
