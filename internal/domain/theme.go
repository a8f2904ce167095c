package domain

import "fmt"

// Theme is the light/dark display preference
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme validates a stored or submitted theme value
func ParseTheme(s string) (Theme, error) {
	switch Theme(s) {
	case ThemeLight, ThemeDark:
		return Theme(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTheme, s)
	}
}

// ThemeFromDarkMode maps an OS dark-mode signal to a theme
func ThemeFromDarkMode(prefersDark bool) Theme {
	if prefersDark {
		return ThemeDark
	}
	return ThemeLight
}

// Toggle returns the opposite theme
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}
