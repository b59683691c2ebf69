package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func withDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("REALCV_DATA_DIR", dir)
	return dir
}

func TestDefaultConfig(t *testing.T) {
	dir := withDataDir(t)

	cfg := DefaultConfig()
	if cfg.Version != Version {
		t.Errorf("version = %d, want %d", cfg.Version, Version)
	}
	if cfg.Server.ListenAddr != "127.0.0.1:8080" {
		t.Errorf("listen addr = %s", cfg.Server.ListenAddr)
	}
	if cfg.Storage.DatabasePath != filepath.Join(dir, "realcv.db") {
		t.Errorf("database path = %s", cfg.Storage.DatabasePath)
	}
	if cfg.Signing.KeyPath != filepath.Join(dir, "signing_key") {
		t.Errorf("key path = %s", cfg.Signing.KeyPath)
	}
	if cfg.Scoring.CandidatePreset != "third-party-response" {
		t.Errorf("candidate preset = %s", cfg.Scoring.CandidatePreset)
	}
	if cfg.QuestionSetExpiry() != 30*24*time.Hour {
		t.Errorf("expiry = %v", cfg.QuestionSetExpiry())
	}
	if cfg.TypingIdleTimeout() != 2*time.Second {
		t.Errorf("idle timeout = %v", cfg.TypingIdleTimeout())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if !strings.HasSuffix(path, "config.toml") {
		t.Errorf("expected path ending with config.toml, got %s", path)
	}
	if !strings.Contains(path, appName) {
		t.Errorf("config path should contain %s: %s", appName, path)
	}
}

func TestQuestionSetExpiryNever(t *testing.T) {
	withDataDir(t)
	cfg := DefaultConfig()
	cfg.Portal.DefaultExpiryHours = 0
	if cfg.QuestionSetExpiry() >= 0 {
		t.Errorf("zero hours should mean never, got %v", cfg.QuestionSetExpiry())
	}
}

func TestLoadFormats(t *testing.T) {
	withDataDir(t)
	dir := t.TempDir()

	files := map[string]string{
		"config.toml": `
[server]
listen_addr = "0.0.0.0:9090"

[logging]
level = "debug"
`,
		"config.json": `{"server": {"listen_addr": "0.0.0.0:9090"}, "logging": {"level": "debug"}}`,
		"config.yaml": `
server:
  listen_addr: "0.0.0.0:9090"
logging:
  level: debug
`,
		"config.conf": `
[server]
listen_addr = "0.0.0.0:9090"
[logging]
level = "debug"
`,
	}

	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(body), 0600); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Server.ListenAddr != "0.0.0.0:9090" {
				t.Errorf("listen addr = %s", cfg.Server.ListenAddr)
			}
			if cfg.Logging.Level != "debug" {
				t.Errorf("level = %s", cfg.Logging.Level)
			}
			// Unset fields keep their defaults.
			if cfg.Server.RateLimitPerMinute != 30 {
				t.Errorf("rate limit = %d", cfg.Server.RateLimitPerMinute)
			}
		})
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	withDataDir(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != DefaultConfig().Server.ListenAddr {
		t.Errorf("expected defaults, got %s", cfg.Server.ListenAddr)
	}
}

func TestLoadMalformed(t *testing.T) {
	withDataDir(t)
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server": `), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestEnvOverrides(t *testing.T) {
	withDataDir(t)
	t.Setenv("REALCV_LISTEN_ADDR", "127.0.0.1:7000")
	t.Setenv("REALCV_DATABASE_PATH", "/tmp/other.db")
	t.Setenv("REALCV_SIGNING_PASSPHRASE", "hunter2")
	t.Setenv("REALCV_LOG_LEVEL", "warn")

	cfg := LoadFromEnv()
	if cfg.Server.ListenAddr != "127.0.0.1:7000" {
		t.Errorf("listen addr = %s", cfg.Server.ListenAddr)
	}
	if cfg.Storage.DatabasePath != "/tmp/other.db" {
		t.Errorf("database path = %s", cfg.Storage.DatabasePath)
	}
	if cfg.Signing.Passphrase != "hunter2" {
		t.Error("passphrase not taken from environment")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("level = %s", cfg.Logging.Level)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	withDataDir(t)
	cfg := DefaultConfig()
	cfg.Server.ListenAddr = "nope"
	cfg.Server.PublicBaseURL = "ftp://example.com"
	cfg.Logging.Level = "verbose"
	cfg.Logging.Output = "file"
	cfg.Logging.FilePath = ""
	cfg.Tracking.IdleTimeoutMs = 0
	cfg.Scoring.CandidatePreset = "strict"
	cfg.Portal.TokenPrefix = "has space"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	want := []string{
		"server.listen_addr",
		"server.public_base_url",
		"logging.level",
		"logging.file_path",
		"tracking.idle_timeout_ms",
		"scoring.candidate_preset",
		"portal.token_prefix",
	}
	got := strings.Join(verrs.Fields(), ",")
	for _, field := range want {
		if !strings.Contains(got, field) {
			t.Errorf("missing error for %s in %s", field, got)
		}
	}
}

func TestValidateRateLimit(t *testing.T) {
	withDataDir(t)
	cfg := DefaultConfig()
	cfg.Server.RateLimitPerMinute = 0
	cfg.Server.RateLimitBurst = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled rate limiting should be valid: %v", err)
	}

	cfg.Server.RateLimitPerMinute = 10
	if err := cfg.Validate(); err == nil {
		t.Error("expected burst error when limiting is enabled")
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	withDataDir(t)
	dir := t.TempDir()

	for _, ext := range SupportedConfigFormats() {
		t.Run(ext, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Server.ListenAddr = "127.0.0.1:9999"
			cfg.Portal.TokenPrefix = "cand_"
			cfg.Signing.Passphrase = "secret"

			path := filepath.Join(dir, "saved."+ext)
			if err := SaveConfig(cfg, path); err != nil {
				t.Fatalf("SaveConfig: %v", err)
			}

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if strings.Contains(string(data), "secret") {
				t.Error("passphrase must not be written to disk")
			}

			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if loaded.Server.ListenAddr != "127.0.0.1:9999" || loaded.Portal.TokenPrefix != "cand_" {
				t.Errorf("round trip lost values: %+v %+v", loaded.Server, loaded.Portal)
			}
		})
	}
}

func TestLoadOrCreate(t *testing.T) {
	withDataDir(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, created, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if !created {
		t.Error("expected config to be created")
	}
	if cfg == nil {
		t.Fatal("nil config")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	_, created, err = LoadOrCreate(path)
	if err != nil {
		t.Fatalf("second LoadOrCreate: %v", err)
	}
	if created {
		t.Error("existing config should not be recreated")
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := withDataDir(t)
	cfg := DefaultConfig()
	cfg.Storage.SessionDir = filepath.Join(dir, "a", "sessions")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	if info, err := os.Stat(cfg.Storage.SessionDir); err != nil || !info.IsDir() {
		t.Errorf("session dir not created: %v", err)
	}
}

func writeConfig(t *testing.T, path, level string) {
	t.Helper()
	body := "[logging]\nlevel = \"" + level + "\"\n"
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestLoaderReload(t *testing.T) {
	withDataDir(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "info")

	l := NewLoader(path)
	defer l.Close()
	if _, err := l.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	var oldLevel, newLevel string
	l.OnChange(func(old, new *Config) {
		oldLevel = old.Logging.Level
		newLevel = new.Logging.Level
	})

	writeConfig(t, path, "debug")
	if err := l.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if oldLevel != "info" || newLevel != "debug" {
		t.Errorf("callback saw %s -> %s", oldLevel, newLevel)
	}
	if l.Config().Logging.Level != "debug" {
		t.Errorf("current level = %s", l.Config().Logging.Level)
	}

	// An invalid file keeps the last good configuration.
	writeConfig(t, path, "loud")
	if err := l.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if l.Config().Logging.Level != "debug" {
		t.Errorf("invalid reload replaced config: %s", l.Config().Logging.Level)
	}
	select {
	case err := <-l.Errors():
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("unexpected reported error: %v", err)
		}
	default:
		t.Error("reload error was not reported")
	}
}

func TestLoaderWatch(t *testing.T) {
	withDataDir(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "info")

	l := NewLoader(path)
	defer l.Close()
	if _, err := l.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	changed := make(chan string, 4)
	l.OnChange(func(_, new *Config) {
		changed <- new.Logging.Level
	})
	if err := l.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	writeConfig(t, path, "error")

	select {
	case level := <-changed:
		if level != "error" {
			t.Errorf("reloaded level = %s", level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
