package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/polyglot/internal/config"
	"github.com/felixgeelhaar/polyglot/internal/content"
	"github.com/felixgeelhaar/polyglot/internal/domain"
	"github.com/felixgeelhaar/polyglot/internal/events"
)

func TestRun_VersionAndHelp(t *testing.T) {
	var out bytes.Buffer
	if err := run("version", nil, &out); err != nil {
		t.Fatalf("run(version) error = %v", err)
	}
	if got := out.String(); got != "polyglot dev\n" {
		t.Errorf("version output = %q", got)
	}

	out.Reset()
	if err := run("help", nil, &out); err != nil {
		t.Fatalf("run(help) error = %v", err)
	}
	for _, cmd := range []string{"start", "provider set-default", "course <language> <level>", "events tail"} {
		if !strings.Contains(out.String(), cmd) {
			t.Errorf("usage missing %q", cmd)
		}
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var out bytes.Buffer
	if err := run("frobnicate", nil, &out); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestDaemonURL(t *testing.T) {
	tests := []struct {
		cfg  config.DaemonConfig
		want string
	}{
		{config.DaemonConfig{Bind: "127.0.0.1", Port: 7433}, "http://127.0.0.1:7433"},
		{config.DaemonConfig{Bind: "0.0.0.0", Port: 8080}, "http://127.0.0.1:8080"},
		{config.DaemonConfig{Port: 9000}, "http://127.0.0.1:9000"},
		{config.DaemonConfig{Bind: "localhost", Port: 7433}, "http://localhost:7433"},
	}
	for _, tt := range tests {
		if got := daemonURL(tt.cfg); got != tt.want {
			t.Errorf("daemonURL(%+v) = %s, want %s", tt.cfg, got, tt.want)
		}
	}
}

func TestTailFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "polyglotd.log")
	var buf bytes.Buffer
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&buf, "line-%d\n", i)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := tailFile(path, 4096, &out); err != nil {
		t.Fatalf("tailFile() error = %v", err)
	}
	if out.String() != buf.String() {
		t.Errorf("full tail = %q", out.String())
	}

	out.Reset()
	if err := tailFile(path, 10, &out); err != nil {
		t.Fatalf("tailFile() error = %v", err)
	}
	if out.String() != "line-9\n" {
		t.Errorf("short tail = %q, want only the last complete line", out.String())
	}
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.pid")
	bad := filepath.Join(dir, "bad.pid")
	_ = os.WriteFile(good, []byte("1234\n"), 0644)
	_ = os.WriteFile(bad, []byte("not-a-pid"), 0644)

	pid, err := readPID(good)
	if err != nil || pid != 1234 {
		t.Errorf("readPID(good) = %d, %v", pid, err)
	}
	if _, err := readPID(bad); err == nil {
		t.Error("expected parse error")
	}
	if _, err := readPID(filepath.Join(dir, "missing.pid")); err == nil {
		t.Error("expected read error")
	}
}

func TestSetProviderKey(t *testing.T) {
	dir := t.TempDir()

	if err := setProviderKey(dir, "gemini", "g-key"); err != nil {
		t.Fatalf("setProviderKey(gemini) error = %v", err)
	}
	if err := setProviderKey(dir, "claude", "  sk-claude\n"); err != nil {
		t.Fatalf("setProviderKey(claude) error = %v", err)
	}

	secrets, err := config.LoadSecrets(dir)
	if err != nil {
		t.Fatalf("LoadSecrets() error = %v", err)
	}
	if secrets["gemini"] != "g-key" || secrets["claude"] != "sk-claude" {
		t.Errorf("secrets = %v, want both keys kept", secrets)
	}

	tests := []struct {
		name, provider, key string
	}{
		{"unknown provider", "cohere", "k"},
		{"ollama has no key", "ollama", "k"},
		{"blank key", "openai", "  \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := setProviderKey(dir, tt.provider, tt.key); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSetDefaultProvider(t *testing.T) {
	dir := t.TempDir()

	if err := setDefaultProvider(dir, "ollama"); err != nil {
		t.Fatalf("setDefaultProvider() error = %v", err)
	}

	cfg, err := config.LoadLocalConfigFrom(dir)
	if err != nil {
		t.Fatalf("LoadLocalConfigFrom() error = %v", err)
	}
	if cfg.LLM.DefaultProvider != "ollama" {
		t.Errorf("DefaultProvider = %s, want ollama", cfg.LLM.DefaultProvider)
	}
	if !cfg.LLM.Providers["ollama"].Enabled {
		t.Error("ollama should be enabled once it is the default")
	}

	if err := setDefaultProvider(dir, "cohere"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestListProviders(t *testing.T) {
	cfg := config.DefaultLocalConfig()
	var out bytes.Buffer
	listProviders(cfg, &out)

	got := out.String()
	if !strings.Contains(got, "gemini (default)") {
		t.Errorf("default marker missing:\n%s", got)
	}
	if !strings.Contains(got, "needs API key") {
		t.Errorf("gemini without key should need one:\n%s", got)
	}
	if strings.Index(got, "claude") > strings.Index(got, "openai") {
		t.Error("providers should be listed in name order")
	}
}

func TestPrintLanguages(t *testing.T) {
	catalog, err := content.LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error = %v", err)
	}

	var out bytes.Buffer
	printLanguages(catalog, &out)

	got := out.String()
	if !strings.Contains(got, "Go (go)") {
		t.Errorf("go missing from listing:\n%s", got)
	}
	if !strings.Contains(got, "coming soon") {
		t.Errorf("disabled level should be marked:\n%s", got)
	}
}

func TestPrintCourse(t *testing.T) {
	catalog, err := content.LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error = %v", err)
	}

	var out bytes.Buffer
	if err := printCourse(catalog, "go", "beginner", &out); err != nil {
		t.Fatalf("printCourse() error = %v", err)
	}
	if !strings.Contains(out.String(), "Go - Beginner") || !strings.Contains(out.String(), "[go-b-1]") {
		t.Errorf("course outline = %s", out.String())
	}

	if err := printCourse(catalog, "cobol", "beginner", &out); !errors.Is(err, domain.ErrLanguageNotFound) {
		t.Errorf("unknown language error = %v", err)
	}
	if err := printCourse(catalog, "go", "expert", &out); !errors.Is(err, domain.ErrInvalidLevel) {
		t.Errorf("bad level error = %v", err)
	}
	if err := printCourse(catalog, "c", "advanced", &out); err == nil {
		t.Error("disabled level should not print")
	}
}

func TestPrintEvent(t *testing.T) {
	var out bytes.Buffer
	handler := printEvent(&out)

	ev := events.Event{
		Type:      events.TypeThemeChanged,
		Timestamp: time.Date(2026, 1, 2, 10, 11, 12, 0, time.UTC),
	}
	if err := handler(context.Background(), ev); err != nil {
		t.Fatalf("handler error = %v", err)
	}

	got := out.String()
	if !strings.HasPrefix(got, "10:11:12.000 theme.changed") {
		t.Errorf("line = %q", got)
	}
	if !strings.HasSuffix(got, " - {}\n") {
		t.Errorf("missing session and data placeholders: %q", got)
	}
}
