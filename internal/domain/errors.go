package domain

import "errors"

// Content errors
var (
	ErrLanguageNotFound = errors.New("language not found")
	ErrSubTopicNotFound = errors.New("subtopic not found")
	ErrInvalidLevel     = errors.New("invalid skill level")
	ErrInvalidContent   = errors.New("invalid content")
	ErrDuplicateID      = errors.New("duplicate identifier")
)

// Preference errors
var (
	ErrInvalidTheme = errors.New("invalid theme")
)
