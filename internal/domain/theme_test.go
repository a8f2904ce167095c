package domain

import (
	"errors"
	"testing"
)

func TestParseTheme(t *testing.T) {
	if got, err := ParseTheme("dark"); err != nil || got != ThemeDark {
		t.Errorf("ParseTheme(dark) = %q, %v", got, err)
	}
	if got, err := ParseTheme("light"); err != nil || got != ThemeLight {
		t.Errorf("ParseTheme(light) = %q, %v", got, err)
	}
	if _, err := ParseTheme("sepia"); !errors.Is(err, ErrInvalidTheme) {
		t.Errorf("ParseTheme(sepia) error = %v, want ErrInvalidTheme", err)
	}
}

func TestTheme_Toggle(t *testing.T) {
	if ThemeDark.Toggle() != ThemeLight {
		t.Error("dark should toggle to light")
	}
	if ThemeLight.Toggle() != ThemeDark {
		t.Error("light should toggle to dark")
	}
}

func TestThemeFromDarkMode(t *testing.T) {
	if ThemeFromDarkMode(true) != ThemeDark {
		t.Error("prefers dark should map to dark")
	}
	if ThemeFromDarkMode(false) != ThemeLight {
		t.Error("no dark preference should map to light")
	}
}
