package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"realcv/internal/forensics"
)

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func (e ValidationErrors) Unwrap() error { return ErrInvalidConfig }

// Fields returns the names of the invalid fields.
func (e ValidationErrors) Fields() []string {
	fields := make([]string, len(e))
	for i, err := range e {
		fields[i] = err.Field
	}
	return fields
}

// ValidateConfig validates every section and reports all problems at once.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateServer(&c.Server)...)
	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateSigning(&c.Signing)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateTracking(&c.Tracking)...)
	errs = append(errs, validateScoring(&c.Scoring)...)
	errs = append(errs, validatePortal(&c.Portal)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateServer(s *ServerConfig) ValidationErrors {
	var errs ValidationErrors

	if _, _, err := net.SplitHostPort(s.ListenAddr); err != nil {
		errs = append(errs, ValidationError{
			Field:   "server.listen_addr",
			Message: fmt.Sprintf("invalid listen address %q: %v", s.ListenAddr, err),
		})
	}

	if s.PublicBaseURL != "" && !isValidURL(s.PublicBaseURL) {
		errs = append(errs, ValidationError{
			Field:   "server.public_base_url",
			Message: "must be an http or https URL",
		})
	}

	timeouts := map[string]int{
		"server.read_timeout_sec":     s.ReadTimeoutSec,
		"server.write_timeout_sec":    s.WriteTimeoutSec,
		"server.idle_timeout_sec":     s.IdleTimeoutSec,
		"server.shutdown_timeout_sec": s.ShutdownTimeoutSec,
	}
	for _, field := range []string{
		"server.read_timeout_sec", "server.write_timeout_sec",
		"server.idle_timeout_sec", "server.shutdown_timeout_sec",
	} {
		if timeouts[field] < 1 {
			errs = append(errs, ValidationError{Field: field, Message: "timeout must be at least 1 second"})
		}
	}

	if s.MaxRequestBytes < 1024 {
		errs = append(errs, ValidationError{
			Field:   "server.max_request_bytes",
			Message: "max request size must be at least 1024 bytes",
		})
	}

	if s.RateLimitPerMinute < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.rate_limit_per_minute",
			Message: "rate limit cannot be negative (0 disables limiting)",
		})
	}
	if s.RateLimitPerMinute > 0 && s.RateLimitBurst < 1 {
		errs = append(errs, ValidationError{
			Field:   "server.rate_limit_burst",
			Message: "burst must be at least 1 when rate limiting is enabled",
		})
	}

	if s.EmployerHeader == "" {
		errs = append(errs, *RequiredFieldError("server.employer_header"))
	} else if strings.ContainsAny(s.EmployerHeader, " :\t\r\n") {
		errs = append(errs, ValidationError{
			Field:   "server.employer_header",
			Message: fmt.Sprintf("invalid header name %q", s.EmployerHeader),
		})
	}

	return errs
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors
	if s.DatabasePath == "" {
		errs = append(errs, *RequiredFieldError("storage.database_path"))
	}
	if s.SessionDir == "" {
		errs = append(errs, *RequiredFieldError("storage.session_dir"))
	}
	return errs
}

func validateSigning(s *SigningConfig) ValidationErrors {
	var errs ValidationErrors
	if s.KeyPath == "" {
		errs = append(errs, *RequiredFieldError("signing.key_path"))
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %q (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

func validateTracking(t *TrackingConfig) ValidationErrors {
	var errs ValidationErrors
	if t.IdleTimeoutMs < 100 || t.IdleTimeoutMs > 60_000 {
		errs = append(errs, *RangeError("tracking.idle_timeout_ms", 100, 60_000))
	}
	if t.TickIntervalMs < 100 || t.TickIntervalMs > 60_000 {
		errs = append(errs, *RangeError("tracking.tick_interval_ms", 100, 60_000))
	}
	if t.MaxPasteLength < 1 {
		errs = append(errs, ValidationError{
			Field:   "tracking.max_paste_length",
			Message: "max paste length must be positive",
		})
	}
	return errs
}

func validateScoring(s *ScoringConfig) ValidationErrors {
	var errs ValidationErrors
	presets := map[string]string{
		"scoring.self_authored_preset": s.SelfAuthoredPreset,
		"scoring.candidate_preset":     s.CandidatePreset,
	}
	for _, field := range []string{"scoring.self_authored_preset", "scoring.candidate_preset"} {
		if _, err := forensics.PolicyByName(presets[field]); err != nil {
			errs = append(errs, ValidationError{
				Field: field,
				Message: fmt.Sprintf("unknown preset %q (valid: %s)",
					presets[field], strings.Join(forensics.PresetNames(), ", ")),
			})
		}
	}
	return errs
}

func validatePortal(p *PortalConfig) ValidationErrors {
	var errs ValidationErrors
	if p.DefaultExpiryHours < 0 {
		errs = append(errs, ValidationError{
			Field:   "portal.default_expiry_hours",
			Message: "expiry cannot be negative (0 means never)",
		})
	}
	if p.TokenPrefix == "" || len(p.TokenPrefix) > 16 || strings.ContainsAny(p.TokenPrefix, " /?#&") {
		errs = append(errs, ValidationError{
			Field:   "portal.token_prefix",
			Message: "prefix must be 1-16 URL-safe characters",
		})
	}
	return errs
}

// Helper functions

func isValidURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}
