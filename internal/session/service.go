package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/felixgeelhaar/polyglot/internal/content"
	"github.com/felixgeelhaar/polyglot/internal/events"
	"github.com/felixgeelhaar/polyglot/internal/tutor"
	"github.com/felixgeelhaar/polyglot/internal/viewer"
	"github.com/google/uuid"
)

// Service keeps viewer sessions in memory. Nothing here survives a restart.
type Service struct {
	source    content.Source
	gateway   tutor.Gateway
	publisher events.Publisher
	logger    *slog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*viewer.Session
}

// Config wires the collaborators shared by every session
type Config struct {
	Source    content.Source
	Gateway   tutor.Gateway
	Publisher events.Publisher
	Logger    *slog.Logger
}

// NewService creates a new session service
func NewService(cfg Config) *Service {
	if cfg.Publisher == nil {
		cfg.Publisher = events.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		source:    cfg.Source,
		gateway:   cfg.Gateway,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		baseCtx:   ctx,
		cancel:    cancel,
		sessions:  make(map[string]*viewer.Session),
	}
}

// Create starts a new viewer session
func (s *Service) Create(ctx context.Context) (*viewer.Session, error) {
	id := uuid.New().String()
	sess := viewer.NewSession(viewer.Config{
		ID:          id,
		Source:      s.source,
		Gateway:     s.gateway,
		Publisher:   s.publisher,
		Logger:      s.logger,
		BaseContext: s.baseCtx,
	})

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.publish(ctx, events.TypeSessionCreated, id)
	s.logger.Debug("viewer session created", "session_id", id)
	return sess, nil
}

// Get retrieves a session by ID
func (s *Service) Get(ctx context.Context, id string) (*viewer.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", viewer.ErrSessionNotFound, id)
	}
	return sess, nil
}

// Delete removes a session. Its in-flight tutor tasks still complete.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", viewer.ErrSessionNotFound, id)
	}

	sess.Close()
	s.publish(ctx, events.TypeSessionDeleted, id)
	return nil
}

// List returns the IDs of all live sessions, sorted
func (s *Service) List(ctx context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of live sessions
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep evicts sessions idle for longer than maxIdle and returns how many went
func (s *Service) Sweep(ctx context.Context, maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	s.mu.RLock()
	var idle []string
	for id, sess := range s.sessions {
		if sess.LastActive().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	s.mu.RUnlock()

	evicted := 0
	for _, id := range idle {
		if err := s.Delete(ctx, id); err == nil {
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Info("evicted idle viewer sessions", "count", evicted)
	}
	return evicted
}

// RunSweeper evicts idle sessions every interval until ctx is done
func (s *Service) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) error {
	if maxIdle <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx, maxIdle)
		}
	}
}

// Shutdown waits for in-flight tutor tasks until ctx expires, then cancels
// the rest. Cancelled tasks still append their fallback reply.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	sessions := make([]*viewer.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		for _, sess := range sessions {
			sess.Wait()
		}
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("drain tutor tasks: %w", ctx.Err())
	}

	s.cancel()
	<-done
	for _, sess := range sessions {
		sess.Close()
	}
	return err
}

func (s *Service) publish(ctx context.Context, eventType, id string) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), events.New(eventType, id, nil)); err != nil {
		s.logger.Warn("failed to publish event", "type", eventType, "error", err)
	}
}
