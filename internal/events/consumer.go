package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Handler processes a consumed event
type Handler func(ctx context.Context, ev Event) error

// Consume reads events from the connection's queue until ctx is cancelled.
// Malformed messages are rejected without requeue; handler errors requeue once.
func Consume(ctx context.Context, conn *Connection, handler Handler) error {
	ch := conn.Channel()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		conn.Queue(),
		"",    // consumer tag (auto-generated)
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-msgs:
			if !ok {
				return nil
			}

			var ev Event
			if err := json.Unmarshal(msg.Body, &ev); err != nil {
				slog.Error("failed to unmarshal event", "error", err)
				msg.Nack(false, false)
				continue
			}

			if err := handler(ctx, ev); err != nil {
				slog.Warn("event handler failed", "event_id", ev.ID, "error", err)
				msg.Nack(false, !msg.Redelivered)
				continue
			}
			msg.Ack(false)
		}
	}
}
