package local

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/polyglot/internal/preference"
)

const preferencesCollection = "preferences"

// PreferenceStore keeps one JSON document of key/value pairs per scope
type PreferenceStore struct {
	store *Store
}

var _ preference.Store = (*PreferenceStore)(nil)

// NewPreferenceStore creates a preference store rooted at basePath
func NewPreferenceStore(basePath string) (*PreferenceStore, error) {
	store, err := NewStore(basePath)
	if err != nil {
		return nil, err
	}
	return &PreferenceStore{store: store}, nil
}

func (p *PreferenceStore) Get(_ context.Context, scope, key string) (string, error) {
	values, err := p.load(scope)
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok {
		return "", preference.ErrNotFound
	}
	return v, nil
}

func (p *PreferenceStore) Set(_ context.Context, scope, key, value string) error {
	values, err := p.load(scope)
	if err != nil && !errors.Is(err, preference.ErrNotFound) {
		return err
	}
	if values == nil {
		values = map[string]string{}
	}
	values[key] = value

	if err := p.store.Save(preferencesCollection, scope, values); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

func (p *PreferenceStore) Close() error { return nil }

func (p *PreferenceStore) load(scope string) (map[string]string, error) {
	var values map[string]string
	err := p.store.Load(preferencesCollection, scope, &values)
	if errors.Is(err, ErrNotFound) {
		return nil, preference.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	return values, nil
}
