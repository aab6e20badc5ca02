package config

// Default configuration values, applied by ApplyDefaults to a freshly
// decoded document before validation.
const (
	DefaultModelTimeoutSeconds     = 20
	DefaultCooldownPeriodSeconds   = 300
	DefaultLogLevel                = "info"
	DefaultMaxBodyBytes            = 2 << 20 // 2 MiB
	DefaultRequestLogCapacity      = 500
	DefaultRequestLogRetentionDays = 30
	DefaultRequestLogPruneSchedule = "0 3 * * *"
	DefaultModelsEndpoint          = "/v1/models"
	DefaultProviderPriority        = 0
)

// ApplyDefaults fills in zero-valued fields of cfg with their defaults. It
// mutates cfg in place and is idempotent.
func ApplyDefaults(cfg *Config) {
	if cfg.Preferences.ModelTimeoutSeconds == 0 {
		cfg.Preferences.ModelTimeoutSeconds = DefaultModelTimeoutSeconds
	}
	if cfg.Preferences.CooldownPeriodSeconds == nil {
		d := DefaultCooldownPeriodSeconds
		cfg.Preferences.CooldownPeriodSeconds = &d
	}
	if cfg.Preferences.LogLevel == "" {
		cfg.Preferences.LogLevel = DefaultLogLevel
	}
	if cfg.Preferences.MaxBodyBytes == 0 {
		cfg.Preferences.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Preferences.RequestLogCapacity == 0 {
		cfg.Preferences.RequestLogCapacity = DefaultRequestLogCapacity
	}
	if cfg.Preferences.RequestLogDBPath != "" {
		if cfg.Preferences.RequestLogRetentionDays == 0 {
			cfg.Preferences.RequestLogRetentionDays = DefaultRequestLogRetentionDays
		}
		if cfg.Preferences.RequestLogPruneSchedule == "" {
			cfg.Preferences.RequestLogPruneSchedule = DefaultRequestLogPruneSchedule
		}
	}

	for i := range cfg.Providers {
		if cfg.Providers[i].ModelsEndpoint == "" {
			cfg.Providers[i].ModelsEndpoint = DefaultModelsEndpoint
		}
	}
}
