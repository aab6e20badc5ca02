package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
api_key: local-secret
providers:
  - provider: a
    base_url: https://a.example.com
    api_key: a-key
    priority: 10
    model:
      - "gpt-4*"
      - my-claude: claude-3-5-sonnet
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.APIKey != "local-secret" {
		t.Errorf("api_key = %q, want local-secret", cfg.APIKey)
	}
	if len(cfg.Providers) != 1 {
		t.Fatalf("len(providers) = %d, want 1", len(cfg.Providers))
	}
	if cfg.Preferences.ModelTimeoutSeconds != DefaultModelTimeoutSeconds {
		t.Errorf("model_timeout default not applied, got %d", cfg.Preferences.ModelTimeoutSeconds)
	}
	p := cfg.Providers[0]
	if len(p.Model) != 2 || p.Model[0].Pattern != "gpt-4*" {
		t.Errorf("unexpected model list: %+v", p.Model)
	}
	if !p.Model[1].IsAlias() || p.Model[1].Alias != "my-claude" || p.Model[1].Upstream != "claude-3-5-sonnet" {
		t.Errorf("unexpected alias entry: %+v", p.Model[1])
	}
}

func TestLoadConfig_EnvExpansion(t *testing.T) {
	t.Setenv("UNIAPI_TEST_PROVIDER_KEY", "sk-from-env")

	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
api_key: local-secret
providers:
  - provider: a
    base_url: https://a.example.com
    api_key: "${UNIAPI_TEST_PROVIDER_KEY}"
    model: ["gpt-4"]
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Providers[0].APIKey != "sk-from-env" {
		t.Errorf("api_key = %q, want sk-from-env", cfg.Providers[0].APIKey)
	}
}

func TestLoadConfig_InvalidRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
api_key: ""
providers: []
`)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for missing api_key")
	}
}

func TestWrite_AtomicRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cooldown := 60
	doc := &Config{
		APIKey: "local-secret",
		Preferences: Preferences{
			ModelTimeoutSeconds:   20,
			CooldownPeriodSeconds: &cooldown,
		},
		Providers: []ProviderConfig{
			{
				Provider: "a",
				BaseURL:  "https://a.example.com",
				APIKey:   "a-key",
				Model:    []ModelEntry{{Pattern: "gpt-4"}},
			},
		},
	}

	if err := Write(path, doc); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// No leftover temp files.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one file in %s, got %d", dir, len(entries))
	}

	reloaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("reload after Write() error = %v", err)
	}
	if reloaded.Providers[0].BaseURL != doc.Providers[0].BaseURL {
		t.Errorf("round-tripped base_url = %q, want %q", reloaded.Providers[0].BaseURL, doc.Providers[0].BaseURL)
	}
}

func TestWrite_RejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	doc := &Config{APIKey: ""}
	if err := Write(path, doc); err == nil {
		t.Fatal("expected Write to reject an invalid document")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Write should not have created the file on validation failure")
	}
}
