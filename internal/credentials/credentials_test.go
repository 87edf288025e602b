package credentials

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCreds(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeCreds(t, `
[google]
api_key = "gm-123"

[anthropic]
api_key = "sk-ant-456"
`)

	creds, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if creds.Google == nil || creds.Google.APIKey != "gm-123" {
		t.Errorf("google creds: %+v", creds.Google)
	}
	if creds.Anthropic == nil || creds.Anthropic.APIKey != "sk-ant-456" {
		t.Errorf("anthropic creds: %+v", creds.Anthropic)
	}
	if creds.OpenAI != nil {
		t.Errorf("openai should be absent, got %+v", creds.OpenAI)
	}
}

func TestLoadFileMalformed(t *testing.T) {
	path := writeCreds(t, `[google`)
	if _, err := LoadFile(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestApplySetsEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	os.Unsetenv("GEMINI_API_KEY")

	creds := &Credentials{Google: &ProviderCreds{APIKey: "from-file"}}
	creds.Apply()

	if got := os.Getenv("GEMINI_API_KEY"); got != "from-file" {
		t.Errorf("GEMINI_API_KEY = %q", got)
	}
}

func TestApplyNeverOverwrites(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")

	creds := &Credentials{Google: &ProviderCreds{APIKey: "from-file"}}
	creds.Apply()

	if got := os.Getenv("GEMINI_API_KEY"); got != "from-env" {
		t.Errorf("environment must win over the file, got %q", got)
	}
}

func TestApplyNilSafe(t *testing.T) {
	var creds *Credentials
	creds.Apply() // must not panic
}
