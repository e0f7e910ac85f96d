package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"

	"scheinicam/internal/config"
	"scheinicam/internal/gateway"
	"scheinicam/internal/logging"
	"scheinicam/internal/services"
)

const component = "watcher"

// reloadDelay coalesces the burst of events an editor save produces.
const reloadDelay = 150 * time.Millisecond

// ErrAlreadyRunning is returned when another watcher holds the lock.
var ErrAlreadyRunning = errors.New("another watcher is already running for this state directory")

// Poller is the recording container the watcher drives.
type Poller interface {
	FetchStatus(ctx context.Context) (gateway.RecordingStatus, error)
	FetchPreview(ctx context.Context) (gateway.PreviewResponse, error)
	FetchNextScheduled(ctx context.Context) (*gateway.Schedule, error)
}

// Intervals are the poll periods. Zero disables preview or schedule polling.
type Intervals struct {
	Status   time.Duration
	Preview  time.Duration
	Schedule time.Duration
}

// IntervalsFromConfig converts the configured seconds.
func IntervalsFromConfig(cfg *config.Config) Intervals {
	return Intervals{
		Status:   time.Duration(cfg.Poll.StatusInterval) * time.Second,
		Preview:  time.Duration(cfg.Poll.PreviewInterval) * time.Second,
		Schedule: time.Duration(cfg.Poll.ScheduleInterval) * time.Second,
	}
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logging.NewComponentLogger(logger, component)
	}
}

// WithConfigPath enables reloading intervals when path changes on disk.
func WithConfigPath(path string) Option {
	return func(w *Watcher) {
		w.configPath = path
	}
}

// WithIntervals overrides the intervals taken from the configuration.
func WithIntervals(intervals Intervals) Option {
	return func(w *Watcher) {
		w.intervals = intervals
	}
}

// WithLockPath overrides the lock file location.
func WithLockPath(path string) Option {
	return func(w *Watcher) {
		w.lockPath = path
	}
}

// Watcher polls the backend until its context ends.
type Watcher struct {
	poller     Poller
	logger     *slog.Logger
	configPath string
	lockPath   string
	lock       *flock.Flock
	running    atomic.Bool
	// loaded holds the config bytes last applied; only Run touches it.
	loaded []byte

	mu        sync.Mutex
	intervals Intervals
	polls     map[string]int
}

// New builds a watcher from cfg. The lock is taken by Run, not here.
func New(cfg *config.Config, poller Poller, opts ...Option) (*Watcher, error) {
	if cfg == nil || poller == nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "new", "watcher requires config and poller", nil)
	}
	w := &Watcher{
		poller:    poller,
		logger:    logging.NewComponentLogger(nil, component),
		lockPath:  cfg.WatchLockPath(),
		intervals: IntervalsFromConfig(cfg),
		polls:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.intervals.Status <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, component, "new", "status interval must be positive", nil)
	}
	w.lock = flock.New(w.lockPath)
	return w, nil
}

// Intervals reports the intervals currently in effect.
func (w *Watcher) Intervals() Intervals {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.intervals
}

// Polls reports how many times kind ("status", "preview", "schedule") ran.
func (w *Watcher) Polls(kind string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.polls[kind]
}

// Run acquires the watcher lock, polls once immediately and then on every
// tick until ctx is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer w.running.Store(false)

	ok, err := w.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := w.lock.Unlock(); err != nil {
			w.logger.Warn("failed to release watcher lock", logging.Error(err))
		}
	}()

	var (
		fsEvents <-chan fsnotify.Event
		fsErrors <-chan error
	)
	if w.configPath != "" {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create config watcher: %w", err)
		}
		defer fsw.Close()
		// Editors replace files on save, so watch the directory.
		if err := fsw.Add(filepath.Dir(w.configPath)); err != nil {
			logging.WarnWithContext(w.logger, "config reload disabled", "config_watch_failed",
				logging.Error(err),
				logging.String("path", w.configPath),
				logging.String(logging.FieldErrorHint, "check that the config directory exists"),
				logging.String(logging.FieldImpact, "interval changes require a restart"),
			)
		} else {
			fsEvents = fsw.Events
			fsErrors = fsw.Errors
		}
		w.loaded, _ = os.ReadFile(w.configPath)
	}

	var (
		reloadTimer *time.Timer
		reloadC     <-chan time.Time
	)
	defer func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}()

	intervals := w.Intervals()
	status := newTicker(intervals.Status)
	preview := newTicker(intervals.Preview)
	schedule := newTicker(intervals.Schedule)
	defer status.stop()
	defer preview.stop()
	defer schedule.stop()

	w.logger.Info("watcher started",
		logging.String("lock", w.lockPath),
		logging.Duration("status_interval", intervals.Status),
		logging.Duration("preview_interval", intervals.Preview),
		logging.Duration("schedule_interval", intervals.Schedule),
	)

	w.pollStatus(ctx)
	if intervals.Preview > 0 {
		w.pollPreview(ctx)
	}
	if intervals.Schedule > 0 {
		w.pollSchedule(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return nil
		case <-status.c():
			w.pollStatus(ctx)
		case <-preview.c():
			w.pollPreview(ctx)
		case <-schedule.c():
			w.pollSchedule(ctx)
		case event, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			if !w.isConfigEvent(event) {
				continue
			}
			if reloadTimer == nil {
				reloadTimer = time.NewTimer(reloadDelay)
			} else {
				reloadTimer.Reset(reloadDelay)
			}
			reloadC = reloadTimer.C
		case <-reloadC:
			reloadC = nil
			next, changed := w.reload()
			if changed {
				status.reset(next.Status)
				preview.reset(next.Preview)
				schedule.reset(next.Schedule)
			}
		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			w.logger.Warn("config watcher error", logging.Error(err))
		}
	}
}

func (w *Watcher) isConfigEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// reload re-reads the config file. Empty, unchanged or invalid content keeps
// the current intervals; an editor truncates the file before writing it.
func (w *Watcher) reload() (Intervals, bool) {
	data, err := os.ReadFile(w.configPath)
	if err == nil && len(bytes.TrimSpace(data)) == 0 {
		w.logger.Debug("ignoring empty config file", logging.String("path", w.configPath))
		return Intervals{}, false
	}
	if err == nil && bytes.Equal(data, w.loaded) {
		return Intervals{}, false
	}
	var cfg *config.Config
	if err == nil {
		cfg, err = config.Parse(data)
	}
	if err != nil {
		logging.WarnWithContext(w.logger, "config reload failed", "config_reload_failed",
			logging.Error(err),
			logging.String("path", w.configPath),
			logging.String(logging.FieldErrorHint, "run camctl config validate"),
			logging.String(logging.FieldImpact, "previous poll intervals stay in effect"),
		)
		return Intervals{}, false
	}
	w.loaded = data

	next := IntervalsFromConfig(cfg)
	w.mu.Lock()
	changed := next != w.intervals
	w.intervals = next
	w.mu.Unlock()
	if changed {
		w.logger.Info("poll intervals reloaded",
			logging.String(logging.FieldEventType, "config_reloaded"),
			logging.Duration("status_interval", next.Status),
			logging.Duration("preview_interval", next.Preview),
			logging.Duration("schedule_interval", next.Schedule),
		)
	}
	return next, changed
}

func (w *Watcher) count(kind string) {
	w.mu.Lock()
	w.polls[kind]++
	w.mu.Unlock()
}

func (w *Watcher) pollStatus(ctx context.Context) {
	w.count("status")
	status, err := w.poller.FetchStatus(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Debug("status poll failed", logging.Error(err))
		}
		return
	}
	w.logger.Debug("status polled",
		logging.Bool("recording", status.IsRecording),
		logging.Bool("connected", status.IsConnected),
	)
}

func (w *Watcher) pollPreview(ctx context.Context) {
	w.count("preview")
	if _, err := w.poller.FetchPreview(ctx); err != nil && ctx.Err() == nil {
		w.logger.Debug("preview poll failed", logging.Error(err))
	}
}

func (w *Watcher) pollSchedule(ctx context.Context) {
	w.count("schedule")
	if _, err := w.poller.FetchNextScheduled(ctx); err != nil && ctx.Err() == nil {
		w.logger.Debug("schedule poll failed", logging.Error(err))
	}
}

// ticker wraps time.Ticker so a zero interval yields a channel that never fires.
type ticker struct {
	t *time.Ticker
}

func newTicker(d time.Duration) *ticker {
	tk := &ticker{}
	tk.reset(d)
	return tk
}

func (tk *ticker) reset(d time.Duration) {
	switch {
	case d <= 0:
		tk.stop()
		tk.t = nil
	case tk.t == nil:
		tk.t = time.NewTicker(d)
	default:
		tk.t.Reset(d)
	}
}

func (tk *ticker) c() <-chan time.Time {
	if tk.t == nil {
		return nil
	}
	return tk.t.C
}

func (tk *ticker) stop() {
	if tk.t != nil {
		tk.t.Stop()
	}
}
