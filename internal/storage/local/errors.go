package local

import "errors"

var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidID is returned for IDs that cannot be used as file names
	ErrInvalidID = errors.New("invalid record id")
)
