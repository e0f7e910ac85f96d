package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"scheinicam/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_RUNTIME_DIR", filepath.Join(tempHome, "run"))
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "scheinicam")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.RuntimeDir != filepath.Join(tempHome, "run", "scheinicam") {
		t.Fatalf("unexpected runtime dir: %q", cfg.Paths.RuntimeDir)
	}
	if cfg.Server.BaseURL != "http://127.0.0.1:8000" {
		t.Fatalf("unexpected base url: %q", cfg.Server.BaseURL)
	}
	if cfg.RequestTimeout() != 30*time.Second {
		t.Fatalf("unexpected request timeout: %s", cfg.RequestTimeout())
	}
	if cfg.Display.Locale != "de-DE" {
		t.Fatalf("unexpected locale: %q", cfg.Display.Locale)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.SessionDBPath() != filepath.Join(wantState, "session.db") {
		t.Fatalf("unexpected session db path: %q", cfg.SessionDBPath())
	}
}

func TestLoadCustomPathOverridesValues(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	payload := map[string]any{
		"server": map[string]any{
			"base_url":                "https://camera.example.com/",
			"request_timeout_seconds": 10,
		},
		"paths": map[string]any{
			"state_dir": "~/state",
		},
		"poll": map[string]any{
			"status_interval":  2,
			"preview_interval": 1,
		},
		"display": map[string]any{
			"locale": "en-US",
		},
		"logging": map[string]any{
			"format": "JSON",
			"level":  "Debug",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Server.BaseURL != "https://camera.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Server.BaseURL)
	}
	if cfg.RequestTimeout() != 10*time.Second {
		t.Fatalf("unexpected timeout: %s", cfg.RequestTimeout())
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, "state") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.Poll.StatusInterval != 2 || cfg.Poll.PreviewInterval != 1 {
		t.Fatalf("unexpected poll values: %+v", cfg.Poll)
	}
	if cfg.Poll.ScheduleInterval != config.Default().Poll.ScheduleInterval {
		t.Fatalf("expected schedule interval default, got %d", cfg.Poll.ScheduleInterval)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected normalized logging, got %+v", cfg.Logging)
	}
	if cfg.LocaleTag().String() != "en-US" {
		t.Fatalf("unexpected locale tag: %s", cfg.LocaleTag())
	}
}

func TestEnvironmentOverridesBaseURL(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SCHEINICAM_URL", "http://10.0.0.5:8080/")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.BaseURL != "http://10.0.0.5:8080" {
		t.Fatalf("expected env base url, got %q", cfg.Server.BaseURL)
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "missing base url",
			mutate:  func(c *config.Config) { c.Server.BaseURL = "" },
			wantErr: "server.base_url must be set",
		},
		{
			name:    "bad scheme",
			mutate:  func(c *config.Config) { c.Server.BaseURL = "ftp://camera" },
			wantErr: "http or https",
		},
		{
			name:    "status interval",
			mutate:  func(c *config.Config) { c.Poll.StatusInterval = 0 },
			wantErr: "poll.status_interval",
		},
		{
			name:    "negative preview interval",
			mutate:  func(c *config.Config) { c.Poll.PreviewInterval = -1 },
			wantErr: "poll.preview_interval",
		},
		{
			name:    "locale",
			mutate:  func(c *config.Config) { c.Display.Locale = "not a locale!" },
			wantErr: "display.locale",
		},
		{
			name:    "log format",
			mutate:  func(c *config.Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name:    "ntfy topic without scheme",
			mutate:  func(c *config.Config) { c.Notifications.NtfyTopic = "ntfy.sh/recorder" },
			wantErr: "notifications.ntfy_topic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Poll.StatusInterval != 5 {
		t.Fatalf("unexpected status interval from sample: %d", cfg.Poll.StatusInterval)
	}
}

func TestEnsureDirectoriesCreatesPaths(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.RuntimeDir = filepath.Join(base, "run")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir, cfg.Paths.RuntimeDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}

func TestParseAppliesDefaultsAndValidates(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SCHEINICAM_URL", "")

	cfg, err := config.Parse([]byte("[poll]\nstatus_interval = 7\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cfg.Poll.StatusInterval != 7 {
		t.Fatalf("unexpected status interval: %d", cfg.Poll.StatusInterval)
	}
	if cfg.Server.BaseURL != "http://127.0.0.1:8000" {
		t.Fatalf("missing fields should keep defaults, got base url %q", cfg.Server.BaseURL)
	}

	if _, err := config.Parse([]byte("[poll]\nstatus_interval = 0\n")); err == nil {
		t.Fatal("expected validation error for zero status interval")
	}
	if _, err := config.Parse([]byte("[poll\n")); err == nil {
		t.Fatal("expected parse error for malformed toml")
	}
}
