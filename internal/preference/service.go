package preference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/felixgeelhaar/polyglot/internal/domain"
	"github.com/felixgeelhaar/polyglot/internal/events"
)

// ErrNotFound is returned by stores when a key has never been written
var ErrNotFound = errors.New("preference not found")

// KeyTheme is the only preference key
const KeyTheme = "theme"

// DefaultScope is used when a client does not name one
const DefaultScope = "default"

// Store persists preference values per scope
type Store interface {
	Get(ctx context.Context, scope, key string) (string, error)
	Set(ctx context.Context, scope, key, value string) error
	Close() error
}

// ThemeState is a resolved theme and where it came from
type ThemeState struct {
	Scope  string       `json:"scope"`
	Theme  domain.Theme `json:"theme"`
	Stored bool         `json:"stored"` // false when derived from the OS signal
}

// Service reads and writes the theme preference
type Service struct {
	store     Store
	publisher events.Publisher
	logger    *slog.Logger
}

// NewService creates a preference service over store
func NewService(store Store, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, publisher: publisher, logger: logger}
}

// Theme returns the stored theme for scope, or the OS preference when none
// is stored. The OS fallback is never written.
func (s *Service) Theme(ctx context.Context, scope string, osPrefersDark bool) (ThemeState, error) {
	scope = normalizeScope(scope)

	raw, err := s.store.Get(ctx, scope, KeyTheme)
	if errors.Is(err, ErrNotFound) {
		return ThemeState{Scope: scope, Theme: domain.ThemeFromDarkMode(osPrefersDark)}, nil
	}
	if err != nil {
		return ThemeState{}, fmt.Errorf("get theme: %w", err)
	}

	theme, err := domain.ParseTheme(raw)
	if err != nil {
		s.logger.Warn("ignoring invalid stored theme", "scope", scope, "value", raw)
		return ThemeState{Scope: scope, Theme: domain.ThemeFromDarkMode(osPrefersDark)}, nil
	}
	return ThemeState{Scope: scope, Theme: theme, Stored: true}, nil
}

// SetTheme stores an explicit theme
func (s *Service) SetTheme(ctx context.Context, scope string, theme domain.Theme) (ThemeState, error) {
	scope = normalizeScope(scope)
	if _, err := domain.ParseTheme(string(theme)); err != nil {
		return ThemeState{}, err
	}

	if err := s.store.Set(ctx, scope, KeyTheme, string(theme)); err != nil {
		return ThemeState{}, fmt.Errorf("set theme: %w", err)
	}

	ev := events.New(events.TypeThemeChanged, "", map[string]string{"scope": scope, "theme": string(theme)})
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish event", "type", ev.Type, "error", err)
	}
	return ThemeState{Scope: scope, Theme: theme, Stored: true}, nil
}

// ToggleTheme flips the resolved theme and stores the result
func (s *Service) ToggleTheme(ctx context.Context, scope string, osPrefersDark bool) (ThemeState, error) {
	current, err := s.Theme(ctx, scope, osPrefersDark)
	if err != nil {
		return ThemeState{}, err
	}
	return s.SetTheme(ctx, current.Scope, current.Theme.Toggle())
}

// Close releases the underlying store
func (s *Service) Close() error {
	return s.store.Close()
}

func normalizeScope(scope string) string {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return DefaultScope
	}
	return scope
}
