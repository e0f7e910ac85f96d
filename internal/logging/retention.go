package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// parseDailyLogName returns the day encoded in a name produced by
// DailyLogPath. Other files in the log directory are never touched.
func parseDailyLogName(name string) (time.Time, bool) {
	stamp, ok := strings.CutPrefix(name, logFilePrefix+"-")
	if !ok {
		return time.Time{}, false
	}
	stamp, ok = strings.CutSuffix(stamp, ".log")
	if !ok {
		return time.Time{}, false
	}
	day, err := time.ParseInLocation(dailyLogLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// PruneDailyLogs removes daily camctl logs in dir whose day lies more than
// retentionDays before now. The day comes from the file name, so copying or
// touching a file does not extend its life. Zero retention keeps everything.
// It returns the number of files removed.
func PruneDailyLogs(logger *slog.Logger, dir string, retentionDays int, now time.Time) int {
	dir = strings.TrimSpace(dir)
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	cutoff := today.AddDate(0, 0, -retentionDays)

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		day, ok := parseDailyLogName(entry.Name())
		if !ok || !day.Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("log pruned",
				String("path", path),
				String(FieldEventType, "log_pruned"),
			)
		}
	}
	return removed
}
