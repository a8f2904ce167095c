package session

import (
	"context"

	"github.com/felixgeelhaar/polyglot/internal/viewer"
)

// SessionService defines the viewer session operations used by the daemon handlers
type SessionService interface {
	// Create starts a new viewer session on the home screen
	Create(ctx context.Context) (*viewer.Session, error)

	// Get retrieves a session by ID
	Get(ctx context.Context, id string) (*viewer.Session, error)

	// Delete removes a session
	Delete(ctx context.Context, id string) error

	// List returns the IDs of all live sessions
	List(ctx context.Context) []string

	// Count returns the number of live sessions
	Count() int
}

// Ensure Service implements SessionService
var _ SessionService = (*Service)(nil)
