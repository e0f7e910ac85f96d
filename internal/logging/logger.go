package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"scheinicam/internal/config"
)

const (
	logFilePrefix  = "camctl"
	dailyLogLayout = "20060102"
)

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string
	Output      io.Writer
	FilePath    string
	Development bool
}

func nopClose() error { return nil }

// New constructs a slog logger using the provided options. Console or JSON
// output goes to Output (stderr by default); when FilePath is set, a JSON copy
// of every record is appended there as well. The returned func closes that
// file and is safe to call when no file was opened.
func New(opts Options) (*slog.Logger, func() error, error) {
	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	addSource := opts.Development || level <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	var primary slog.Handler
	switch format {
	case "json":
		primary = newJSONHandler(out, levelVar, addSource)
	case "console":
		primary = newPrettyHandler(out, levelVar, addSource)
	default:
		return nil, nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	path := strings.TrimSpace(opts.FilePath)
	if path == "" {
		return slog.New(primary), nopClose, nil
	}
	if err := ensureLogDir(path); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	var once sync.Once
	var closeErr error
	closeFile := func() error {
		once.Do(func() { closeErr = file.Close() })
		return closeErr
	}
	return slog.New(newFanoutHandler(primary, newJSONHandler(file, levelVar, addSource))), closeFile, nil
}

// NewFromConfig creates a logger using application config defaults, writing
// human output to output (stderr when nil). A nil config yields an info-level
// console logger. Daily log files past the configured retention are pruned on
// construction.
func NewFromConfig(cfg *config.Config, output io.Writer) (*slog.Logger, func() error, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console", Output: output})
	}

	opts := Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: output,
	}
	now := time.Now()
	if cfg.Paths.LogDir != "" {
		opts.FilePath = DailyLogPath(cfg.Paths.LogDir, now)
	}
	logger, closeFile, err := New(opts)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Paths.LogDir != "" {
		PruneDailyLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, now)
	}
	return logger, closeFile, nil
}

// DailyLogPath returns the log file used for records written on day.
func DailyLogPath(dir string, day time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.log", logFilePrefix, day.Format(dailyLogLayout)))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure log directory: %w", err)
	}
	return nil
}
