package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid config")

// Storage drivers
const (
	StorageSQLite   = "sqlite"
	StorageJSON     = "json"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
	StorageMemory   = "memory"
)

// Event drivers
const (
	EventsLog  = "log"
	EventsAMQP = "amqp"
	EventsNone = "none"
)

// LocalConfig holds configuration for local daemon mode
type LocalConfig struct {
	Daemon  DaemonConfig  `yaml:"daemon" json:"daemon"`
	LLM     LLMConfig     `yaml:"llm" json:"llm"`
	Tutor   TutorConfig   `yaml:"tutor" json:"tutor"`
	Content ContentConfig `yaml:"content" json:"content"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	Events  EventsConfig  `yaml:"events" json:"events"`
}

// DaemonConfig holds daemon server settings
type DaemonConfig struct {
	Port               int    `yaml:"port" json:"port"`
	Bind               string `yaml:"bind" json:"bind"`
	LogLevel           string `yaml:"log_level" json:"log_level"`
	SessionIdleMinutes int    `yaml:"session_idle_minutes" json:"session_idle_minutes"`
}

// LLMConfig holds LLM provider settings
type LLMConfig struct {
	DefaultProvider string                     `yaml:"default_provider" json:"default_provider"`
	TimeoutSeconds  int                        `yaml:"timeout_seconds" json:"timeout_seconds"`
	Providers       map[string]*ProviderConfig `yaml:"providers" json:"providers"`
}

// ProviderConfig holds settings for a single LLM provider
type ProviderConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Model   string `yaml:"model" json:"model"`
	URL     string `yaml:"url,omitempty" json:"url,omitempty"`
	APIKey  string `yaml:"-" json:"-"` // Loaded from secrets.yaml or the environment
}

// TutorConfig holds request shaping for tutor calls
type TutorConfig struct {
	MaxTokens   int              `yaml:"max_tokens" json:"max_tokens"`
	Temperature float64          `yaml:"temperature" json:"temperature"`
	Resilience  ResilienceConfig `yaml:"resilience" json:"resilience"`
}

// ResilienceConfig toggles the fortify patterns around providers
type ResilienceConfig struct {
	CircuitBreaker bool `yaml:"circuit_breaker" json:"circuit_breaker"`
	Retry          bool `yaml:"retry" json:"retry"`
	Bulkhead       bool `yaml:"bulkhead" json:"bulkhead"`
	RateLimit      bool `yaml:"rate_limit" json:"rate_limit"`
	MaxConcurrent  int  `yaml:"max_concurrent" json:"max_concurrent"`
	RatePerSecond  int  `yaml:"rate_per_second" json:"rate_per_second"`
}

// ContentConfig selects the curriculum source
type ContentConfig struct {
	Path           string `yaml:"path" json:"path"` // empty: embedded catalog
	HighlightStyle string `yaml:"highlight_style" json:"highlight_style"`
}

// StorageConfig selects the preference store
type StorageConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	Path   string `yaml:"path,omitempty" json:"path,omitempty"`
	DSN    string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	Addr   string `yaml:"addr,omitempty" json:"addr,omitempty"`
}

// EventsConfig selects where session events go
type EventsConfig struct {
	Driver  string `yaml:"driver" json:"driver"`
	AMQPURL string `yaml:"amqp_url,omitempty" json:"amqp_url,omitempty"`
	Queue   string `yaml:"queue,omitempty" json:"queue,omitempty"`
}

// SecretsConfig holds API keys loaded from secrets.yaml
type SecretsConfig struct {
	Providers map[string]SecretEntry `yaml:"providers" json:"providers"`
}

// SecretEntry is one provider's credentials
type SecretEntry struct {
	APIKey string `yaml:"api_key" json:"api_key"`
}

// PolyglotDir returns the path to ~/.polyglot
func PolyglotDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".polyglot"), nil
}

// EnsurePolyglotDir creates ~/.polyglot and subdirectories if they don't exist
func EnsurePolyglotDir() (string, error) {
	dir, err := PolyglotDir()
	if err != nil {
		return "", err
	}

	for _, subdir := range []string{"", "logs", "data"} {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns sensible defaults for local mode
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		Daemon: DaemonConfig{
			Port:               7433,
			Bind:               "127.0.0.1",
			LogLevel:           "info",
			SessionIdleMinutes: 60,
		},
		LLM: LLMConfig{
			DefaultProvider: "gemini",
			TimeoutSeconds:  120,
			Providers: map[string]*ProviderConfig{
				"gemini": {
					Enabled: true,
					Model:   "gemini-2.5-flash",
				},
				"claude": {
					Enabled: false,
					Model:   "claude-sonnet-4-20250514",
				},
				"openai": {
					Enabled: false,
					Model:   "gpt-4o",
				},
				"ollama": {
					Enabled: false,
					URL:     "http://localhost:11434",
					Model:   "llama3.2",
				},
			},
		},
		Tutor: TutorConfig{
			MaxTokens:   1024,
			Temperature: 0.7,
			Resilience: ResilienceConfig{
				CircuitBreaker: true,
				Bulkhead:       true,
				RateLimit:      true,
				MaxConcurrent:  5,
				RatePerSecond:  2,
			},
		},
		Content: ContentConfig{
			HighlightStyle: "monokai",
		},
		Storage: StorageConfig{
			Driver: StorageSQLite,
		},
		Events: EventsConfig{
			Driver: EventsLog,
			Queue:  "polyglot.events",
		},
	}
}

// LoadLocalConfig loads ~/.polyglot/config.yaml and secrets, then applies
// environment overrides
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := PolyglotDir()
	if err != nil {
		return nil, err
	}

	cfg, err := LoadLocalConfigFrom(dir)
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadLocalConfigFrom loads config.yaml and secrets.yaml from dir. A missing
// config file yields defaults.
func LoadLocalConfigFrom(dir string) (*LocalConfig, error) {
	cfg := DefaultLocalConfig()

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	return cfg, nil
}

// loadSecrets applies API keys from secrets.yaml to configured providers
func loadSecrets(dir string, cfg *LocalConfig) error {
	secrets, err := LoadSecrets(dir)
	if err != nil {
		return err
	}
	for name, key := range secrets {
		if provider, ok := cfg.LLM.Providers[name]; ok {
			provider.APIKey = key
		}
	}
	return nil
}

// LoadSecrets reads the provider->key map from dir/secrets.yaml
func LoadSecrets(dir string) (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "secrets.yaml"))
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parse secrets: %w", err)
	}

	out := make(map[string]string, len(secrets.Providers))
	for name, s := range secrets.Providers {
		out[name] = s.APIKey
	}
	return out, nil
}

// Validate checks enumerated fields and ranges
func (c *LocalConfig) Validate() error {
	if c.Daemon.Port <= 0 || c.Daemon.Port > 65535 {
		return fmt.Errorf("%w: daemon.port %d out of range", ErrInvalidConfig, c.Daemon.Port)
	}
	switch c.Storage.Driver {
	case StorageSQLite, StorageJSON, StorageMemory:
	case StoragePostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("%w: storage.dsn is required for postgres", ErrInvalidConfig)
		}
	case StorageRedis:
		if c.Storage.Addr == "" {
			return fmt.Errorf("%w: storage.addr is required for redis", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, c.Storage.Driver)
	}
	switch c.Events.Driver {
	case EventsLog, EventsNone, "":
	case EventsAMQP:
		if c.Events.AMQPURL == "" {
			return fmt.Errorf("%w: events.amqp_url is required for amqp", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown events driver %q", ErrInvalidConfig, c.Events.Driver)
	}
	if c.Tutor.Temperature < 0 || c.Tutor.Temperature > 2 {
		return fmt.Errorf("%w: tutor.temperature %.2f out of range", ErrInvalidConfig, c.Tutor.Temperature)
	}
	return nil
}

// Redacted returns a copy safe to print: credentials embedded in connection
// strings are masked. API keys never serialize.
func (c *LocalConfig) Redacted() *LocalConfig {
	out := *c
	out.Storage.DSN = redactURL(c.Storage.DSN)
	out.Events.AMQPURL = redactURL(c.Events.AMQPURL)
	return &out
}

func redactURL(raw string) string {
	if raw == "" || !strings.Contains(raw, "://") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

// SaveLocalConfig saves configuration to ~/.polyglot/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsurePolyglotDir()
	if err != nil {
		return err
	}
	return SaveLocalConfigTo(dir, cfg)
}

// SaveLocalConfigTo writes config.yaml into dir
func SaveLocalConfigTo(dir string, cfg *LocalConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// SaveSecrets saves API keys to ~/.polyglot/secrets.yaml
func SaveSecrets(secrets map[string]string) error {
	dir, err := EnsurePolyglotDir()
	if err != nil {
		return err
	}
	return SaveSecretsTo(dir, secrets)
}

// SaveSecretsTo writes secrets.yaml into dir with owner-only permissions
func SaveSecretsTo(dir string, secrets map[string]string) error {
	secretsCfg := SecretsConfig{Providers: make(map[string]SecretEntry, len(secrets))}
	for name, key := range secrets {
		secretsCfg.Providers[name] = SecretEntry{APIKey: key}
	}

	data, err := yaml.Marshal(secretsCfg)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), data, 0600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}

	return nil
}
