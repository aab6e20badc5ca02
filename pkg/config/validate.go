package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "providers[0].base_url").
	Field string
	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration document. It implements the error interface.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks cfg against the documented validation rules and returns a
// ValidationError aggregating every violation found, or nil if cfg is valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	if cfg.APIKey == "" {
		errs = append(errs, FieldError{Field: "api_key", Message: "api_key is required"})
	}

	errs = append(errs, validatePreferences(&cfg.Preferences)...)
	errs = append(errs, validateProviders(cfg.Providers)...)
	if err := cfg.TLS.Validate(); err != nil {
		errs = append(errs, FieldError{Field: "tls", Message: err.Error()})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validatePreferences(p *Preferences) []FieldError {
	var errs []FieldError

	if p.ModelTimeoutSeconds <= 0 {
		errs = append(errs, FieldError{
			Field:   "preferences.model_timeout",
			Message: "must be positive",
		})
	}
	if p.CooldownPeriodSeconds != nil && *p.CooldownPeriodSeconds < 0 {
		errs = append(errs, FieldError{
			Field:   "preferences.cooldown_period",
			Message: "must be >= 0",
		})
	}
	if p.Proxy != "" {
		if _, err := url.Parse(p.Proxy); err != nil {
			errs = append(errs, FieldError{
				Field:   "preferences.proxy",
				Message: fmt.Sprintf("not a valid URL: %v", err),
			})
		}
	}
	if p.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "preferences.max_body_bytes",
			Message: "must be >= 0",
		})
	}
	if p.RequestLogCapacity < 0 {
		errs = append(errs, FieldError{
			Field:   "preferences.request_log_capacity",
			Message: "must be >= 0",
		})
	}
	if p.RequestLogRetentionDays < 0 {
		errs = append(errs, FieldError{
			Field:   "preferences.request_log_retention_days",
			Message: "must be >= 0",
		})
	}
	if p.RequestLogDBPath != "" && p.RequestLogPruneSchedule != "" {
		if _, err := cron.ParseStandard(p.RequestLogPruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "preferences.request_log_prune_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	return errs
}

func validateProviders(providers []ProviderConfig) []FieldError {
	var errs []FieldError

	seen := make(map[string]bool, len(providers))
	for i, p := range providers {
		field := fmt.Sprintf("providers[%d]", i)

		if p.Provider == "" {
			errs = append(errs, FieldError{Field: field + ".provider", Message: "provider name is required"})
		} else if seen[p.Provider] {
			errs = append(errs, FieldError{Field: field + ".provider", Message: fmt.Sprintf("duplicate provider name %q", p.Provider)})
		} else {
			seen[p.Provider] = true
		}

		if p.BaseURL == "" {
			errs = append(errs, FieldError{Field: field + ".base_url", Message: "base_url is required"})
		} else if u, err := url.Parse(p.BaseURL); err != nil || !u.IsAbs() {
			errs = append(errs, FieldError{Field: field + ".base_url", Message: "must be a syntactically valid absolute URL"})
		}

		if p.APIKey == "" {
			errs = append(errs, FieldError{Field: field + ".api_key", Message: "api_key is required"})
		}

		for j, m := range p.Model {
			mfield := fmt.Sprintf("%s.model[%d]", field, j)
			if m.IsAlias() {
				if m.Alias == "" || m.Upstream == "" {
					errs = append(errs, FieldError{Field: mfield, Message: "alias mapping must have a non-empty key and value"})
				}
			} else if m.Pattern == "" {
				errs = append(errs, FieldError{Field: mfield, Message: "must be a non-empty string or single-key mapping"})
			}
		}
	}

	return errs
}
