package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/polyglot/internal/config"
	"github.com/felixgeelhaar/polyglot/internal/content"
	"github.com/felixgeelhaar/polyglot/internal/daemon"
	"github.com/felixgeelhaar/polyglot/internal/llm"
	mcpserver "github.com/felixgeelhaar/polyglot/internal/mcp"
	"github.com/felixgeelhaar/polyglot/internal/tutor"
)

// cmdMCP serves the curriculum and tutor tools to an MCP client
func cmdMCP(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	httpAddr := fs.String("http", "", "serve over HTTP on this address instead of stdio")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// stdout carries the protocol; logs go to stderr
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	catalog, err := content.Open(cfg.Content.Path)
	if err != nil {
		return fmt.Errorf("load curriculum: %w", err)
	}

	registry := llm.NewRegistry()
	if err := daemon.SetupLLMProviders(cfg, registry, logger); err != nil {
		return fmt.Errorf("setup llm providers: %w", err)
	}
	defer registry.Close()

	srv := mcpserver.NewServer(mcpserver.Config{
		Catalog: catalog,
		Gateway: tutor.NewService(registry, tutor.Options{
			MaxTokens:   cfg.Tutor.MaxTokens,
			Temperature: cfg.Tutor.Temperature,
		}),
		Logger: logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *httpAddr != "" {
		logger.Warn("serving MCP over HTTP", "addr", *httpAddr)
		return srv.ServeHTTP(ctx, *httpAddr)
	}
	return srv.ServeStdio(ctx)
}
