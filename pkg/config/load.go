package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/raikyou/uniapi/pkg/security/secrets"
)

// LoadConfig reads the document at path (YAML unless the extension is
// .json), expands `${VAR}` environment references, applies defaults, and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := decode(path, data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	secrets.ExpandEnv(&cfg.APIKey)
	for i := range cfg.Providers {
		secrets.ExpandEnv(&cfg.Providers[i].APIKey)
		secrets.ExpandEnv(&cfg.Providers[i].BaseURL)
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides applies UNIAPI_-prefixed environment variable overrides.
// Variables follow UNIAPI_SECTION_FIELD for top-level preferences, and
// UNIAPI_PROVIDERS_<NAME>_<FIELD> for a named provider entry, where NAME is
// the provider's configured identifier upper-cased.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("UNIAPI_API_KEY"); val != "" {
		cfg.APIKey = val
	}
	if val := os.Getenv("UNIAPI_PREFERENCES_MODEL_TIMEOUT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Preferences.ModelTimeoutSeconds = i
		}
	}
	if val := os.Getenv("UNIAPI_PREFERENCES_COOLDOWN_PERIOD"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Preferences.CooldownPeriodSeconds = &i
		}
	}
	if val := os.Getenv("UNIAPI_PREFERENCES_PROXY"); val != "" {
		cfg.Preferences.Proxy = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Preferences.LogLevel = val
	}

	for i := range cfg.Providers {
		applyProviderEnvOverrides(&cfg.Providers[i])
	}
}

func applyProviderEnvOverrides(p *ProviderConfig) {
	if p.Provider == "" {
		return
	}
	prefix := fmt.Sprintf("UNIAPI_PROVIDERS_%s_", strings.ToUpper(p.Provider))

	if val := os.Getenv(prefix + "BASE_URL"); val != "" {
		p.BaseURL = val
	}
	if val := os.Getenv(prefix + "API_KEY"); val != "" {
		p.APIKey = val
	}
	if val := os.Getenv(prefix + "PRIORITY"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			p.Priority = i
		}
	}
	if val := os.Getenv(prefix + "ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			p.Enabled = &b
		}
	}
}

// Write serializes doc and atomically replaces the file at path: write to a
// temp file in the same directory, fsync, then rename. This guarantees a
// concurrent reloadIfChanged() never observes a partially written file.
func Write(path string, doc *Config) error {
	if err := Validate(doc); err != nil {
		return err
	}

	var data []byte
	var err error
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = yaml.Marshal(doc)
	}
	if err != nil {
		return fmt.Errorf("failed to serialize configuration: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".uniapi-config-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file into place: %w", err)
	}
	return nil
}
