// Package config defines the gateway's declarative configuration document
// and the in-memory types it loads into.
package config

import (
	"time"

	"github.com/raikyou/uniapi/pkg/security/tls"
)

// Config is the root configuration document: the single source of truth for
// the gateway, loaded from a YAML (or JSON) file on disk.
type Config struct {
	// APIKey is the local admission credential callers must present.
	APIKey string `yaml:"api_key" json:"api_key"`

	Preferences Preferences      `yaml:"preferences" json:"preferences"`
	Providers   []ProviderConfig `yaml:"providers" json:"providers"`

	// TLS optionally terminates TLS at the gateway's own listener, with
	// hot-reload on certificate renewal. Left disabled, the gateway expects
	// TLS termination to happen upstream (a load balancer or sidecar).
	TLS tls.Config `yaml:"tls" json:"tls"`
}

// Preferences holds the gateway's tunable ambient behavior.
type Preferences struct {
	// ModelTimeoutSeconds bounds a single upstream attempt.
	ModelTimeoutSeconds int `yaml:"model_timeout" json:"model_timeout"`

	// CooldownPeriodSeconds is how long a failing provider is skipped for.
	// Zero disables cooldown entirely; nil (unset) takes the default.
	CooldownPeriodSeconds *int `yaml:"cooldown_period" json:"cooldown_period"`

	// Proxy is an optional upstream HTTP/HTTPS proxy URL applied to the
	// HTTP Client Pool.
	Proxy string `yaml:"proxy" json:"proxy"`

	// LogLevel sets the process logger's level. The LOG_LEVEL environment
	// variable, when set, overrides it.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// MaxBodyBytes bounds how much of the inbound request body the proxy
	// engine reads into memory to extract the model field.
	MaxBodyBytes int64 `yaml:"max_body_bytes" json:"max_body_bytes"`

	// RequestLogCapacity sizes the bounded in-memory request log ring.
	RequestLogCapacity int `yaml:"request_log_capacity" json:"request_log_capacity"`

	// RequestLogDBPath, if set, mirrors request log records to a sqlite
	// database at this path for durability across restarts. The in-memory
	// ring remains the source of truth for the live admin tail; an empty
	// path disables the mirror entirely.
	RequestLogDBPath string `yaml:"request_log_db_path" json:"request_log_db_path"`

	// RequestLogRetentionDays bounds how long mirrored records are kept.
	// When the mirror is enabled, zero is replaced by
	// DefaultRequestLogRetentionDays, so age-based pruning stays on.
	RequestLogRetentionDays int `yaml:"request_log_retention_days" json:"request_log_retention_days"`

	// RequestLogPruneSchedule is a cron expression controlling how often the
	// sqlite mirror is pruned. When the mirror is enabled, empty is replaced
	// by DefaultRequestLogPruneSchedule, so scheduled pruning stays on.
	RequestLogPruneSchedule string `yaml:"request_log_prune_schedule" json:"request_log_prune_schedule"`

	// Treat429AsClientFault resolves the open question in spec.md §9:
	// by default a 429 is an upstream fault (fail over + cooldown); set
	// this to classify it as a client fault instead (forward verbatim,
	// no cooldown, no failover).
	Treat429AsClientFault bool `yaml:"treat_429_as_client_fault" json:"treat_429_as_client_fault"`
}

// ModelTimeout returns the per-attempt deadline as a time.Duration.
func (p Preferences) ModelTimeout() time.Duration {
	return time.Duration(p.ModelTimeoutSeconds) * time.Second
}

// CooldownPeriod returns the cooldown window as a time.Duration. A nil
// CooldownPeriodSeconds is treated as the default (ApplyDefaults should have
// already filled it in by the time this is called in practice).
func (p Preferences) CooldownPeriod() time.Duration {
	if p.CooldownPeriodSeconds == nil {
		return DefaultCooldownPeriodSeconds * time.Second
	}
	return time.Duration(*p.CooldownPeriodSeconds) * time.Second
}

// ModelEntry is one entry of a provider's `model` list: either a bare
// wildcard pattern string, or a single-key alias mapping {alias: upstream}.
type ModelEntry struct {
	// Pattern is set when the entry is a bare string.
	Pattern string
	// Alias and Upstream are both set when the entry is a mapping.
	Alias    string
	Upstream string
}

// IsAlias reports whether this entry is an {alias: upstream} mapping.
func (m ModelEntry) IsAlias() bool {
	return m.Alias != ""
}

// MatchKey is the string matched against the incoming model name: Pattern
// for bare entries, Alias for mappings.
func (m ModelEntry) MatchKey() string {
	if m.IsAlias() {
		return m.Alias
	}
	return m.Pattern
}

// EffectiveID is the upstream-facing model identifier: Upstream for
// mappings, Pattern for bare entries (used for catalog deduplication).
func (m ModelEntry) EffectiveID() string {
	if m.IsAlias() {
		return m.Upstream
	}
	return m.Pattern
}

// IsWildcard reports whether the entry's match key contains glob
// metacharacters, excluding it from the aggregated model catalog.
func (m ModelEntry) IsWildcard() bool {
	k := m.MatchKey()
	for _, r := range k {
		if r == '*' || r == '?' {
			return true
		}
	}
	return false
}

// ProviderConfig describes one configured upstream provider.
type ProviderConfig struct {
	Provider       string       `yaml:"provider" json:"provider"`
	BaseURL        string       `yaml:"base_url" json:"base_url"`
	APIKey         string       `yaml:"api_key" json:"api_key"`
	Priority       int          `yaml:"priority" json:"priority"`
	Enabled        *bool        `yaml:"enabled" json:"enabled"`
	ModelsEndpoint string       `yaml:"models_endpoint" json:"models_endpoint"`
	Model          []ModelEntry `yaml:"model" json:"model"`
}

// IsEnabled returns the effective enabled flag, defaulting to true when unset.
func (p ProviderConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}
