// Package config handles configuration loading, validation, and management for realcv.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete service configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Server configuration for the HTTP API.
	Server ServerConfig `toml:"server" json:"server" yaml:"server"`

	// Storage configuration for persistence.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Signing configuration for certificates.
	Signing SigningConfig `toml:"signing" json:"signing" yaml:"signing"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Tracking configuration for writing sessions.
	Tracking TrackingConfig `toml:"tracking" json:"tracking" yaml:"tracking"`

	// Scoring selects the policy presets for each flow.
	Scoring ScoringConfig `toml:"scoring" json:"scoring" yaml:"scoring"`

	// Portal configuration for employer question sets.
	Portal PortalConfig `toml:"portal" json:"portal" yaml:"portal"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// ListenAddr is the address the API listens on.
	ListenAddr string `toml:"listen_addr" json:"listen_addr" yaml:"listen_addr"`

	// PublicBaseURL is printed on certificates as the verification site.
	PublicBaseURL string `toml:"public_base_url" json:"public_base_url" yaml:"public_base_url"`

	ReadTimeoutSec     int `toml:"read_timeout_sec" json:"read_timeout_sec" yaml:"read_timeout_sec"`
	WriteTimeoutSec    int `toml:"write_timeout_sec" json:"write_timeout_sec" yaml:"write_timeout_sec"`
	IdleTimeoutSec     int `toml:"idle_timeout_sec" json:"idle_timeout_sec" yaml:"idle_timeout_sec"`
	ShutdownTimeoutSec int `toml:"shutdown_timeout_sec" json:"shutdown_timeout_sec" yaml:"shutdown_timeout_sec"`

	// MaxRequestBytes caps request bodies.
	MaxRequestBytes int64 `toml:"max_request_bytes" json:"max_request_bytes" yaml:"max_request_bytes"`

	// RateLimitPerMinute and RateLimitBurst limit write endpoints per client IP.
	RateLimitPerMinute int `toml:"rate_limit_per_minute" json:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	RateLimitBurst     int `toml:"rate_limit_burst" json:"rate_limit_burst" yaml:"rate_limit_burst"`

	// TrustProxyHeaders takes the client IP from X-Forwarded-For,
	// X-Real-IP and CF-Connecting-IP.
	TrustProxyHeaders bool `toml:"trust_proxy_headers" json:"trust_proxy_headers" yaml:"trust_proxy_headers"`

	// EmployerHeader carries the authenticated employer identity set by
	// the fronting auth layer.
	EmployerHeader string `toml:"employer_header" json:"employer_header" yaml:"employer_header"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	// DataDir is the base directory for realcv state.
	DataDir string `toml:"data_dir" json:"data_dir" yaml:"data_dir"`

	// DatabasePath is the SQLite database.
	DatabasePath string `toml:"database_path" json:"database_path" yaml:"database_path"`

	// SessionDir holds the JSON session files written by `realcv record`.
	SessionDir string `toml:"session_dir" json:"session_dir" yaml:"session_dir"`
}

// SigningConfig holds certificate signing configuration.
type SigningConfig struct {
	// KeyPath is the Ed25519 private key in OpenSSH format. It is created
	// on first start when missing.
	KeyPath string `toml:"key_path" json:"key_path" yaml:"key_path"`

	// Passphrase unlocks an encrypted key. Only read from the environment.
	Passphrase string `toml:"-" json:"-" yaml:"-"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file (when Output is "file" or "both").
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is the maximum age of log files in days.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`

	// Compress determines whether to compress rotated logs.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`
}

// TrackingConfig holds writing session recording configuration.
type TrackingConfig struct {
	// IdleTimeoutMs closes an open typing interval after this much silence.
	IdleTimeoutMs int `toml:"idle_timeout_ms" json:"idle_timeout_ms" yaml:"idle_timeout_ms"`

	// TickIntervalMs is how often live typing time is updated.
	TickIntervalMs int `toml:"tick_interval_ms" json:"tick_interval_ms" yaml:"tick_interval_ms"`

	// MaxPasteLength is the largest paste accepted, in characters.
	MaxPasteLength int `toml:"max_paste_length" json:"max_paste_length" yaml:"max_paste_length"`
}

// ScoringConfig names the policy preset used by each flow.
type ScoringConfig struct {
	// SelfAuthoredPreset scores resumes and certificates.
	SelfAuthoredPreset string `toml:"self_authored_preset" json:"self_authored_preset" yaml:"self_authored_preset"`

	// CandidatePreset scores question portal responses.
	CandidatePreset string `toml:"candidate_preset" json:"candidate_preset" yaml:"candidate_preset"`
}

// PortalConfig holds employer question portal configuration.
type PortalConfig struct {
	// DefaultExpiryHours applies to new question sets; 0 means never.
	DefaultExpiryHours int `toml:"default_expiry_hours" json:"default_expiry_hours" yaml:"default_expiry_hours"`

	// TokenPrefix starts every candidate token.
	TokenPrefix string `toml:"token_prefix" json:"token_prefix" yaml:"token_prefix"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()

	return &Config{
		Version: Version,
		Server: ServerConfig{
			ListenAddr:         "127.0.0.1:8080",
			PublicBaseURL:      "http://localhost:8080/verify",
			ReadTimeoutSec:     15,
			WriteTimeoutSec:    30,
			IdleTimeoutSec:     120,
			ShutdownTimeoutSec: 10,
			MaxRequestBytes:    8 * 1024 * 1024, // 8MB
			RateLimitPerMinute: 30,
			RateLimitBurst:     10,
			TrustProxyHeaders:  true,
			EmployerHeader:     "X-Employer-Email",
		},
		Storage: StorageConfig{
			DataDir:      dir,
			DatabasePath: filepath.Join(dir, "realcv.db"),
			SessionDir:   filepath.Join(dir, "sessions"),
		},
		Signing: SigningConfig{
			KeyPath: filepath.Join(dir, "signing_key"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(dir, "realcv.log"),
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Tracking: TrackingConfig{
			IdleTimeoutMs:  2000,
			TickIntervalMs: 1000,
			MaxPasteLength: 1000,
		},
		Scoring: ScoringConfig{
			SelfAuthoredPreset: "self-authored",
			CandidatePreset:    "third-party-response",
		},
		Portal: PortalConfig{
			DefaultExpiryHours: 30 * 24,
			TokenPrefix:        "resp_",
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates all necessary directories for the service.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDir,
		filepath.Dir(c.Storage.DatabasePath),
		c.Storage.SessionDir,
		filepath.Dir(c.Signing.KeyPath),
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DataDir returns the base realcv directory.
// Uses platform-specific paths or the REALCV_DATA_DIR environment override.
func DataDir() string {
	if envDir := os.Getenv("REALCV_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with REALCV_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	// Server overrides
	if v := os.Getenv("REALCV_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("REALCV_PUBLIC_BASE_URL"); v != "" {
		c.Server.PublicBaseURL = v
	}

	// Storage overrides
	if v := os.Getenv("REALCV_DATABASE_PATH"); v != "" {
		c.Storage.DatabasePath = v
	}

	// Signing overrides
	if v := os.Getenv("REALCV_SIGNING_KEY_PATH"); v != "" {
		c.Signing.KeyPath = v
	}
	if v := os.Getenv("REALCV_SIGNING_PASSPHRASE"); v != "" {
		c.Signing.Passphrase = v
	}

	// Logging overrides
	if v := os.Getenv("REALCV_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("REALCV_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// ReadTimeout returns the server read timeout.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeoutSec) * time.Second
}

// WriteTimeout returns the server write timeout.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeoutSec) * time.Second
}

// IdleTimeout returns the server keep-alive timeout.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Server.IdleTimeoutSec) * time.Second
}

// ShutdownTimeout returns how long a graceful shutdown may take.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSec) * time.Second
}

// TypingIdleTimeout returns the recorder idle timeout.
func (c *Config) TypingIdleTimeout() time.Duration {
	return time.Duration(c.Tracking.IdleTimeoutMs) * time.Millisecond
}

// TypingTick returns the recorder tick interval.
func (c *Config) TypingTick() time.Duration {
	return time.Duration(c.Tracking.TickIntervalMs) * time.Millisecond
}

// QuestionSetExpiry returns the default question set lifetime. Zero
// configured hours means sets never expire, reported as a negative duration.
func (c *Config) QuestionSetExpiry() time.Duration {
	if c.Portal.DefaultExpiryHours == 0 {
		return -1
	}
	return time.Duration(c.Portal.DefaultExpiryHours) * time.Hour
}
