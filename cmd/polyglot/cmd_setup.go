package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/polyglot/internal/config"
)

// cmdConfig prints the effective configuration with secrets masked
func cmdConfig(out io.Writer) error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	fmt.Fprintln(out, "Polyglot Configuration")
	fmt.Fprintln(out)
	_, _ = out.Write(data)

	if dir, err := config.PolyglotDir(); err == nil {
		fmt.Fprintf(out, "\nConfig path: %s\n", filepath.Join(dir, "config.yaml"))
	}
	return nil
}

// cmdProvider manages LLM providers
func cmdProvider(args []string, out io.Writer) error {
	if len(args) < 1 {
		fmt.Fprintln(out, `Provider management commands:

  polyglot provider list                  List configured providers
  polyglot provider set-key <name>        Set API key for a provider
  polyglot provider set-default <name>    Use a provider for tutor replies`)
		return nil
	}

	dir, err := config.EnsurePolyglotDir()
	if err != nil {
		return err
	}

	switch args[0] {
	case "list":
		cfg, err := config.LoadLocalConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		listProviders(cfg, out)
		return nil
	case "set-key":
		if len(args) < 2 {
			return errors.New("provider name required")
		}
		fmt.Fprintf(out, "Enter %s API key: ", args[1])
		key, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read input: %w", err)
		}
		if err := setProviderKey(dir, args[1], key); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ API key saved for %s\n", args[1])
		fmt.Fprintln(out, "Restart the daemon for changes to take effect.")
		return nil
	case "set-default":
		if len(args) < 2 {
			return errors.New("provider name required")
		}
		if err := setDefaultProvider(dir, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Default provider set to %s\n", args[1])
		fmt.Fprintln(out, "Restart the daemon for changes to take effect.")
		return nil
	default:
		return fmt.Errorf("unknown provider command: %s", args[0])
	}
}

func listProviders(cfg *config.LocalConfig, out io.Writer) {
	fmt.Fprintln(out, "Configured LLM Providers:")
	for _, name := range providerNames(cfg) {
		provider := cfg.LLM.Providers[name]
		status := "disabled"
		if provider.Enabled {
			if provider.APIKey != "" || name == "ollama" {
				status = "ready"
			} else {
				status = "needs API key"
			}
		}

		isDefault := ""
		if name == cfg.LLM.DefaultProvider {
			isDefault = " (default)"
		}

		fmt.Fprintf(out, "  %s%s\n", name, isDefault)
		fmt.Fprintf(out, "    status: %s\n", status)
		fmt.Fprintf(out, "    model:  %s\n", provider.Model)
		if provider.URL != "" {
			fmt.Fprintf(out, "    url:    %s\n", provider.URL)
		}
		fmt.Fprintln(out)
	}
}

// setProviderKey merges key into dir/secrets.yaml
func setProviderKey(dir, provider, key string) error {
	cfg, err := config.LoadLocalConfigFrom(dir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if _, ok := cfg.LLM.Providers[provider]; !ok {
		return fmt.Errorf("unknown provider: %s (valid: %s)", provider, strings.Join(providerNames(cfg), ", "))
	}
	if provider == "ollama" {
		return errors.New("ollama does not use an API key")
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("API key cannot be empty")
	}

	secrets, err := config.LoadSecrets(dir)
	if err != nil {
		return err
	}
	secrets[provider] = key
	if err := config.SaveSecretsTo(dir, secrets); err != nil {
		return fmt.Errorf("save secrets: %w", err)
	}
	return nil
}

// setDefaultProvider enables provider and makes it the default in dir/config.yaml
func setDefaultProvider(dir, provider string) error {
	// Environment overrides are not persisted
	cfg, err := config.LoadLocalConfigFrom(dir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	p, ok := cfg.LLM.Providers[provider]
	if !ok {
		return fmt.Errorf("unknown provider: %s (valid: %s)", provider, strings.Join(providerNames(cfg), ", "))
	}
	p.Enabled = true
	cfg.LLM.DefaultProvider = provider

	if err := config.SaveLocalConfigTo(dir, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

func providerNames(cfg *config.LocalConfig) []string {
	names := make([]string, 0, len(cfg.LLM.Providers))
	for name := range cfg.LLM.Providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
