// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the agent configuration.
type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	DuckDB    DuckDBConfig    `toml:"duckdb"`
	Storage   StorageConfig   `toml:"storage"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// LLMConfig contains model backend settings.
type LLMConfig struct {
	Provider     string `toml:"provider"`
	Model        string `toml:"model"`
	APIKeyEnv    string `toml:"api_key_env"`
	MaxTokens    int    `toml:"max_tokens"`
	BaseURL      string `toml:"base_url"`      // Custom API endpoint (OpenRouter, Ollama, LMStudio)
	MaxRetries   int    `toml:"max_retries"`   // Max retry attempts for transient errors
	RetryBackoff string `toml:"retry_backoff"` // Max backoff duration (default "30s")
}

// DuckDBConfig contains database engine settings.
type DuckDBConfig struct {
	Binary  string `toml:"binary"`  // duckdb executable (default "duckdb")
	Timeout int    `toml:"timeout"` // per-statement timeout in seconds (0 = none)
}

// StorageConfig contains session recording settings.
type StorageConfig struct {
	Path   string `toml:"path"`   // base directory for session records
	Format string `toml:"format"` // "jsonl" (default) or "sqlite"
}

// TelemetryConfig contains tracing settings.
type TelemetryConfig struct {
	Enabled  bool              `toml:"enabled"`
	Endpoint string            `toml:"endpoint"` // OTLP endpoint (e.g., localhost:4317)
	Protocol string            `toml:"protocol"` // grpc (default), stdout, or noop
	Insecure bool              `toml:"insecure"` // disable TLS
	Headers  map[string]string `toml:"headers"`  // auth headers for the collector
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  "google",
			Model:     "gemini-2.0-flash-001",
			MaxTokens: 4096,
		},
		DuckDB: DuckDBConfig{
			Binary: "duckdb",
		},
		Storage: StorageConfig{
			Path:   "~/.local/share/duckdb-agent",
			Format: "jsonl",
		},
		Telemetry: TelemetryConfig{
			Protocol: "noop",
		},
	}
}

// LoadFile loads configuration from a TOML file over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Load loads agent.toml from the current directory if present, otherwise
// returns defaults.
func Load() (*Config, error) {
	path := "agent.toml"
	if _, err := os.Stat(path); err != nil {
		return New(), nil
	}
	return LoadFile(path)
}

// GetAPIKey returns the API key from the configured environment variable,
// falling back to the default variables for the provider.
func (c *Config) GetAPIKey() string {
	if c.LLM.APIKeyEnv != "" {
		return os.Getenv(c.LLM.APIKeyEnv)
	}
	for _, envVar := range DefaultAPIKeyEnvs(c.LLM.Provider) {
		if val := os.Getenv(envVar); val != "" {
			return val
		}
	}
	return ""
}

// DefaultAPIKeyEnvs returns the default environment variable names for a
// provider, in lookup order.
func DefaultAPIKeyEnvs(provider string) []string {
	switch provider {
	case "google":
		return []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	case "anthropic":
		return []string{"ANTHROPIC_API_KEY"}
	case "openai":
		return []string{"OPENAI_API_KEY"}
	case "openrouter":
		return []string{"OPENROUTER_API_KEY"}
	default:
		return nil
	}
}

// RetryBackoffDuration parses the configured max backoff, or zero when unset.
func (c *Config) RetryBackoffDuration() time.Duration {
	if c.LLM.RetryBackoff == "" {
		return 0
	}
	d, err := time.ParseDuration(c.LLM.RetryBackoff)
	if err != nil {
		return 0
	}
	return d
}

// StoragePath resolves the storage base directory, expanding a leading ~.
func (c *Config) StoragePath() string {
	path := c.Storage.Path
	if path == "" {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "duckdb-agent")
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
