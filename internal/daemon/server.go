package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"time"

	"github.com/felixgeelhaar/polyglot/internal/config"
	"github.com/felixgeelhaar/polyglot/internal/content"
	"github.com/felixgeelhaar/polyglot/internal/events"
	"github.com/felixgeelhaar/polyglot/internal/llm"
	"github.com/felixgeelhaar/polyglot/internal/preference"
	"github.com/felixgeelhaar/polyglot/internal/session"
	"github.com/felixgeelhaar/polyglot/internal/storage"
	"github.com/felixgeelhaar/polyglot/internal/tutor"
)

// Version is reported by /v1/status
const Version = "0.1.0"

// Server represents the Polyglot daemon HTTP server
type Server struct {
	cfg    *config.LocalConfig
	server *http.Server
	router *http.ServeMux
	logger *slog.Logger

	catalog     *content.Catalog
	renderer    *content.Renderer
	llmRegistry llm.LLMRegistry
	sessions    session.SessionService
	preferences *preference.Service
	publisher   events.Publisher

	startedAt time.Time
}

// ServerConfig holds configuration for creating a new server. Any
// collaborator left nil is built from Config.
type ServerConfig struct {
	Config  *config.LocalConfig
	DataDir string // preference files; default ~/.polyglot/data
	Logger  *slog.Logger

	Catalog     *content.Catalog
	Registry    llm.LLMRegistry
	Gateway     tutor.Gateway
	Sessions    session.SessionService
	Preferences *preference.Service
	Publisher   events.Publisher
}

// NewServer creates a new daemon server
func NewServer(ctx context.Context, cfg ServerConfig) (*Server, error) {
	if cfg.Config == nil {
		cfg.Config = config.DefaultLocalConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:       cfg.Config,
		router:    http.NewServeMux(),
		logger:    logger,
		renderer:  content.NewRenderer(cfg.Config.Content.HighlightStyle),
		startedAt: time.Now(),
	}

	s.publisher = cfg.Publisher
	if s.publisher == nil {
		s.publisher = setupPublisher(cfg.Config.Events, logger)
	}

	s.catalog = cfg.Catalog
	if s.catalog == nil {
		catalog, err := content.Open(cfg.Config.Content.Path)
		if err != nil {
			return nil, fmt.Errorf("load content: %w", err)
		}
		s.catalog = catalog
	}
	logger.Info("content loaded", "languages", s.catalog.Count(), "path", cfg.Config.Content.Path)

	s.llmRegistry = cfg.Registry
	if s.llmRegistry == nil {
		registry := llm.NewRegistry()
		if err := SetupLLMProviders(cfg.Config, registry, logger); err != nil {
			return nil, fmt.Errorf("setup llm providers: %w", err)
		}
		s.llmRegistry = registry
	}

	gateway := cfg.Gateway
	if gateway == nil {
		gateway = tutor.NewService(s.llmRegistry, tutor.Options{
			MaxTokens:   cfg.Config.Tutor.MaxTokens,
			Temperature: cfg.Config.Tutor.Temperature,
		})
	}

	s.sessions = cfg.Sessions
	if s.sessions == nil {
		s.sessions = session.NewService(session.Config{
			Source:    s.catalog,
			Gateway:   gateway,
			Publisher: s.publisher,
			Logger:    logger,
		})
	}

	s.preferences = cfg.Preferences
	if s.preferences == nil {
		dataDir := cfg.DataDir
		if dataDir == "" {
			dir, err := config.PolyglotDir()
			if err != nil {
				return nil, err
			}
			dataDir = filepath.Join(dir, "data")
		}
		store, err := storage.OpenPreferences(ctx, cfg.Config.Storage, dataDir)
		if err != nil {
			return nil, fmt.Errorf("open preference store: %w", err)
		}
		s.preferences = preference.NewService(store, s.publisher, logger)
	}

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Config.Daemon.Bind, cfg.Config.Daemon.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No WriteTimeout: the session event stream is long-lived
	}

	return s, nil
}

// setupPublisher builds the event publisher; an unreachable broker degrades
// to logging
func setupPublisher(cfg config.EventsConfig, logger *slog.Logger) events.Publisher {
	switch cfg.Driver {
	case config.EventsNone:
		return events.Nop{}
	case config.EventsAMQP:
		conn, err := events.NewConnection(cfg.AMQPURL, cfg.Queue)
		if err != nil {
			logger.Warn("event broker unavailable, logging events instead", "error", err)
			return events.NewLogPublisher(logger)
		}
		return events.NewAMQPPublisher(conn)
	default:
		return events.NewLogPublisher(logger)
	}
}

// SetupLLMProviders registers every enabled provider, each wrapped in the
// resilience layer
func SetupLLMProviders(cfg *config.LocalConfig, registry *llm.Registry, logger *slog.Logger) error {
	timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	res := cfg.Tutor.Resilience
	resilient := llm.ResilientConfig{
		EnableCircuitBreaker: res.CircuitBreaker,
		EnableRetry:          res.Retry,
		EnableBulkhead:       res.Bulkhead,
		EnableRateLimit:      res.RateLimit,
		MaxConcurrent:        res.MaxConcurrent,
		RatePerSecond:        res.RatePerSecond,
		Logger:               logger,
	}

	for name, providerCfg := range cfg.LLM.Providers {
		if !providerCfg.Enabled {
			continue
		}

		var provider llm.Provider
		switch name {
		case "gemini":
			if providerCfg.APIKey == "" {
				logger.Debug("Gemini provider enabled but no API key set")
				continue
			}
			provider = llm.NewGeminiProvider(llm.GeminiConfig{
				APIKey:  providerCfg.APIKey,
				BaseURL: providerCfg.URL,
				Model:   providerCfg.Model,
				Timeout: timeout,
			})
		case "claude":
			if providerCfg.APIKey == "" {
				logger.Debug("Claude provider enabled but no API key set")
				continue
			}
			provider = llm.NewClaudeProvider(llm.ClaudeConfig{
				APIKey:  providerCfg.APIKey,
				BaseURL: providerCfg.URL,
				Model:   providerCfg.Model,
				Timeout: timeout,
			})
		case "openai":
			if providerCfg.APIKey == "" {
				logger.Debug("OpenAI provider enabled but no API key set")
				continue
			}
			provider = llm.NewOpenAIProvider(llm.OpenAIConfig{
				APIKey:  providerCfg.APIKey,
				BaseURL: providerCfg.URL,
				Model:   providerCfg.Model,
				Timeout: timeout,
			})
		case "ollama":
			provider = llm.NewOllamaProvider(llm.OllamaConfig{
				BaseURL: providerCfg.URL,
				Model:   providerCfg.Model,
				Timeout: timeout,
			})
		default:
			logger.Warn("unknown LLM provider in config", "name", name)
			continue
		}

		registry.Register(name, llm.NewResilientProvider(provider, resilient))
		logger.Info("registered LLM provider", "name", name, "model", providerCfg.Model)
	}

	if def := cfg.LLM.DefaultProvider; def != "" {
		if err := registry.SetDefault(def); err != nil {
			logger.Warn("default provider not available", "name", def, "error", err)
		}
	}
	if len(registry.List()) == 0 {
		logger.Warn("no LLM provider configured; tutor replies will use the fallback message")
	}
	return nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health & status
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)

	// Config
	s.router.HandleFunc("GET /v1/config", s.handleGetConfig)
	s.router.HandleFunc("GET /v1/config/providers", s.handleListProviders)

	// Curriculum
	s.router.HandleFunc("GET /v1/languages", s.handleListLanguages)
	s.router.HandleFunc("GET /v1/languages/{lang}/levels/{level}", s.handleGetCourse)
	s.router.HandleFunc("GET /v1/languages/{lang}/levels/{level}/subtopics/{id}", s.handleGetSubTopic)

	// Viewer sessions
	s.router.HandleFunc("GET /v1/sessions", s.handleListSessions)
	s.router.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	s.router.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	s.router.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)
	s.router.HandleFunc("GET /v1/sessions/{id}/events", s.handleSessionEvents)

	// Navigation
	s.router.HandleFunc("POST /v1/sessions/{id}/language", s.handleSelectLanguage)
	s.router.HandleFunc("POST /v1/sessions/{id}/level", s.handleSelectLevel)
	s.router.HandleFunc("POST /v1/sessions/{id}/back", s.handleGoBack)
	s.router.HandleFunc("POST /v1/sessions/{id}/topics/{topic}/toggle", s.handleToggleTopic)
	s.router.HandleFunc("POST /v1/sessions/{id}/subtopic", s.handleSelectSubTopic)

	// Tutor
	s.router.HandleFunc("POST /v1/sessions/{id}/tutor/ask", s.handleAsk)
	s.router.HandleFunc("POST /v1/sessions/{id}/tutor/exercise", s.handleGenerateExercise)
	s.router.HandleFunc("POST /v1/sessions/{id}/tutor/panel", s.handleTogglePanel)
	s.router.HandleFunc("DELETE /v1/sessions/{id}/tutor/transcript", s.handleClearTranscript)

	// Preferences
	s.router.HandleFunc("GET /v1/preferences/theme", s.handleGetTheme)
	s.router.HandleFunc("PUT /v1/preferences/theme", s.handleSetTheme)
	s.router.HandleFunc("POST /v1/preferences/theme/toggle", s.handleToggleTheme)
}

// Handler returns the router wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	return recoveryMiddleware(correlationIDMiddleware(loggingMiddleware(s.router)))
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start starts the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting polyglot daemon",
		"addr", s.server.Addr,
		"llm_providers", s.llmRegistry.List(),
		"languages", s.catalog.Count(),
	)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RunSweeper evicts idle viewer sessions until ctx is done. It returns
// immediately when eviction is disabled.
func (s *Server) RunSweeper(ctx context.Context) error {
	idle := time.Duration(s.cfg.Daemon.SessionIdleMinutes) * time.Minute
	sweeper, ok := s.sessions.(interface {
		RunSweeper(ctx context.Context, interval, maxIdle time.Duration) error
	})
	if idle <= 0 || !ok {
		return nil
	}

	interval := idle / 4
	if interval > time.Minute {
		interval = time.Minute
	}
	return sweeper.RunSweeper(ctx, interval, idle)
}

// Shutdown stops accepting requests, drains in-flight tutor tasks and
// releases stores and brokers
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down daemon...")

	err := s.server.Shutdown(ctx)

	if sd, ok := s.sessions.(interface{ Shutdown(context.Context) error }); ok {
		if serr := sd.Shutdown(ctx); serr != nil {
			s.logger.Warn("tutor tasks did not drain", "error", serr)
		}
	}
	if cerr := s.preferences.Close(); cerr != nil {
		s.logger.Warn("failed to close preference store", "error", cerr)
	}
	if cerr := s.publisher.Close(); cerr != nil {
		s.logger.Warn("failed to close event publisher", "error", cerr)
	}
	if c, ok := s.llmRegistry.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil {
			s.logger.Warn("failed to close llm providers", "error", cerr)
		}
	}

	return err
}

// Handler implementations

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":           "running",
		"version":          Version,
		"uptime_seconds":   int(time.Since(s.startedAt).Seconds()),
		"llm_providers":    s.llmRegistry.List(),
		"default_provider": s.llmRegistry.DefaultName(),
		"languages":        s.catalog.Count(),
		"sessions":         s.sessions.Count(),
		"storage":          s.cfg.Storage.Driver,
		"events":           s.cfg.Events.Driver,
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	// API keys never serialize; connection strings are masked
	s.jsonResponse(w, http.StatusOK, s.cfg.Redacted())
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	registered := make(map[string]bool)
	for _, name := range s.llmRegistry.List() {
		registered[name] = true
	}

	providers := make([]map[string]interface{}, 0, len(s.cfg.LLM.Providers))
	for _, name := range sortedKeys(s.cfg.LLM.Providers) {
		cfg := s.cfg.LLM.Providers[name]
		providers = append(providers, map[string]interface{}{
			"name":       name,
			"enabled":    cfg.Enabled,
			"model":      cfg.Model,
			"configured": cfg.APIKey != "" || name == "ollama",
			"registered": registered[name],
		})
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"default":   s.llmRegistry.DefaultName(),
		"providers": providers,
	})
}

// Helper methods

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	s.jsonResponse(w, status, response)
}

// decodeBody decodes an optional JSON body; an empty body leaves v untouched
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
