package config

import (
	"os"
	"strconv"
)

// ApplyEnv overrides file settings from the environment. Used in containers
// where writing ~/.polyglot is impractical.
func ApplyEnv(cfg *LocalConfig) {
	cfg.Daemon.Bind = getEnv("POLYGLOT_BIND", cfg.Daemon.Bind)
	cfg.Daemon.Port = getEnvInt("POLYGLOT_PORT", cfg.Daemon.Port)
	cfg.Daemon.LogLevel = getEnv("POLYGLOT_LOG_LEVEL", cfg.Daemon.LogLevel)
	cfg.Content.Path = getEnv("POLYGLOT_CONTENT_PATH", cfg.Content.Path)
	cfg.Storage.Driver = getEnv("POLYGLOT_STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.DSN = getEnv("POLYGLOT_STORAGE_DSN", cfg.Storage.DSN)
	cfg.Storage.Addr = getEnv("POLYGLOT_STORAGE_ADDR", cfg.Storage.Addr)
	cfg.LLM.DefaultProvider = getEnv("POLYGLOT_LLM_PROVIDER", cfg.LLM.DefaultProvider)
	cfg.LLM.TimeoutSeconds = getEnvInt("POLYGLOT_LLM_TIMEOUT", cfg.LLM.TimeoutSeconds)
	cfg.Tutor.Resilience.Retry = getEnvBool("POLYGLOT_TUTOR_RETRY", cfg.Tutor.Resilience.Retry)

	if amqpURL := getEnv("POLYGLOT_AMQP_URL", ""); amqpURL != "" {
		cfg.Events.Driver = EventsAMQP
		cfg.Events.AMQPURL = amqpURL
	}

	setKey(cfg, "gemini", getEnv("GEMINI_API_KEY", getEnv("API_KEY", "")))
	setKey(cfg, "claude", getEnv("ANTHROPIC_API_KEY", ""))
	setKey(cfg, "openai", getEnv("OPENAI_API_KEY", ""))
}

func setKey(cfg *LocalConfig, provider, key string) {
	if key == "" {
		return
	}
	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = make(map[string]*ProviderConfig)
	}
	p, ok := cfg.LLM.Providers[provider]
	if !ok {
		p = &ProviderConfig{}
		cfg.LLM.Providers[provider] = p
	}
	p.APIKey = key
	p.Enabled = true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
