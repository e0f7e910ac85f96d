package testsupport

import (
	"path/filepath"
	"testing"

	"scheinicam/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.RuntimeDir = filepath.Join(base, "run")
	cfgVal.Display.Locale = "en-US"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithBaseURL points the config at a fake backend.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.BaseURL = url
	}
}

// WithLocale overrides the display locale.
func WithLocale(locale string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Display.Locale = locale
	}
}

// WithPollIntervals overrides the watcher intervals in seconds.
func WithPollIntervals(status, preview, schedule int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Poll.StatusInterval = status
		b.cfg.Poll.PreviewInterval = preview
		b.cfg.Poll.ScheduleInterval = schedule
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
