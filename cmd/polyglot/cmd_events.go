package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/polyglot/internal/config"
	"github.com/felixgeelhaar/polyglot/internal/events"
)

// cmdEvents inspects the daemon's event stream
func cmdEvents(args []string, out io.Writer) error {
	if len(args) < 1 || args[0] != "tail" {
		fmt.Fprintln(out, `Event commands:

  polyglot events tail    Consume and print events from the AMQP queue`)
		return nil
	}

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Events.Driver != config.EventsAMQP {
		return fmt.Errorf("events driver is %q; tail needs %q", cfg.Events.Driver, config.EventsAMQP)
	}

	conn, err := events.NewConnection(cfg.Events.AMQPURL, cfg.Events.Queue)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(out, "Tailing %s (Ctrl-C to stop)\n", cfg.Events.Queue)
	err = events.Consume(ctx, conn, printEvent(out))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// printEvent writes one line per event
func printEvent(out io.Writer) events.Handler {
	return func(_ context.Context, ev events.Event) error {
		data := "{}"
		if len(ev.Data) > 0 {
			data = string(ev.Data)
		}
		session := ev.SessionID
		if session == "" {
			session = "-"
		}
		_, err := fmt.Fprintf(out, "%s %-22s %s %s\n", ev.Timestamp.Format("15:04:05.000"), ev.Type, session, data)
		return err
	}
}
