// Package credentials loads API keys from standard locations.
package credentials

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Credentials holds API keys loaded from credentials.toml.
type Credentials struct {
	Google    *ProviderCreds `toml:"google"`
	Anthropic *ProviderCreds `toml:"anthropic"`
	OpenAI    *ProviderCreds `toml:"openai"`
}

// ProviderCreds holds credentials for a single provider.
type ProviderCreds struct {
	APIKey string `toml:"api_key"`
}

// StandardPaths returns the credential file locations in priority order.
func StandardPaths() []string {
	paths := []string{"credentials.toml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "duckdb-agent", "credentials.toml"),
			filepath.Join(home, ".duckdb-agent", "credentials.toml"),
		)
	}

	return paths
}

// Load loads credentials from the first available standard location.
// A missing file is not an error.
func Load() (*Credentials, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			creds, err := LoadFile(path)
			if err != nil {
				return nil, path, err
			}
			return creds, path, nil
		}
	}
	return nil, "", nil
}

// LoadFile loads credentials from a specific file.
func LoadFile(path string) (*Credentials, error) {
	var creds Credentials
	if _, err := toml.DecodeFile(path, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// Apply sets environment variables from loaded credentials (if not already
// set), so the environment remains the single lookup path for keys.
func (c *Credentials) Apply() {
	if c == nil {
		return
	}

	if c.Google != nil && c.Google.APIKey != "" {
		setIfEmpty("GEMINI_API_KEY", c.Google.APIKey)
	}
	if c.Anthropic != nil && c.Anthropic.APIKey != "" {
		setIfEmpty("ANTHROPIC_API_KEY", c.Anthropic.APIKey)
	}
	if c.OpenAI != nil && c.OpenAI.APIKey != "" {
		setIfEmpty("OPENAI_API_KEY", c.OpenAI.APIKey)
	}
}

func setIfEmpty(key, value string) {
	if os.Getenv(key) == "" {
		os.Setenv(key, value)
	}
}
