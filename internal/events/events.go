package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by viewer sessions and the preference service
const (
	TypeSessionCreated = "session.created"
	TypeSessionDeleted = "session.deleted"
	TypeViewChanged    = "view.changed"
	TypeTaskIssued     = "tutor.task_issued"
	TypeTaskCompleted  = "tutor.task_completed"
	TypeThemeChanged   = "theme.changed"
)

// Event is a notification about something that happened in the daemon
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// New creates an event, marshaling data as its payload
func New(eventType, sessionID string, data any) Event {
	ev := Event{
		ID:        uuid.New(),
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
	}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			ev.Data = raw
		}
	}
	return ev
}

// Publisher delivers events to an external sink
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// LogPublisher writes events to a structured logger
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a publisher backed by logger (slog.Default if nil)
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, ev Event) error {
	p.logger.LogAttrs(ctx, slog.LevelDebug, "event",
		slog.String("event_id", ev.ID.String()),
		slog.String("type", ev.Type),
		slog.String("session_id", ev.SessionID),
		slog.String("data", string(ev.Data)),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Nop discards events
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
