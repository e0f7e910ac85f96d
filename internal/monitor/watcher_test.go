package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scheinicam/internal/gateway"
	"scheinicam/internal/recording"
	"scheinicam/internal/services"
	"scheinicam/internal/testsupport"
)

type countingPoller struct {
	status   atomic.Int32
	preview  atomic.Int32
	schedule atomic.Int32
	fail     atomic.Bool
}

func (p *countingPoller) FetchStatus(context.Context) (gateway.RecordingStatus, error) {
	p.status.Add(1)
	if p.fail.Load() {
		return gateway.RecordingStatus{}, services.Wrap(services.ErrTransport, "test", "status", "unreachable", nil)
	}
	return gateway.RecordingStatus{IsConnected: true}, nil
}

func (p *countingPoller) FetchPreview(context.Context) (gateway.PreviewResponse, error) {
	p.preview.Add(1)
	return gateway.PreviewResponse{}, nil
}

func (p *countingPoller) FetchNextScheduled(context.Context) (*gateway.Schedule, error) {
	p.schedule.Add(1)
	return nil, nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// startWatcher runs w in the background. The returned stop func cancels it
// and reports Run's result; it is also called on cleanup.
func startWatcher(t *testing.T, w *Watcher) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	stop := sync.OnceValue(func() error {
		cancel()
		return <-done
	})
	t.Cleanup(func() { _ = stop() })
	return stop
}

func TestWatcherPollsOnEveryInterval(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	poller := &countingPoller{}
	w, err := New(cfg, poller, WithIntervals(Intervals{
		Status:   10 * time.Millisecond,
		Preview:  15 * time.Millisecond,
		Schedule: 20 * time.Millisecond,
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	startWatcher(t, w)

	waitFor(t, func() bool {
		return poller.status.Load() >= 3 && poller.preview.Load() >= 2 && poller.schedule.Load() >= 2
	})
	if w.Polls("status") < 3 {
		t.Fatalf("expected polls to be counted, got %d", w.Polls("status"))
	}
}

func TestWatcherZeroIntervalDisablesPoll(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	poller := &countingPoller{}
	w, err := New(cfg, poller, WithIntervals(Intervals{Status: 5 * time.Millisecond}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	startWatcher(t, w)

	waitFor(t, func() bool { return poller.status.Load() >= 5 })
	if poller.preview.Load() != 0 || poller.schedule.Load() != 0 {
		t.Fatalf("disabled polls ran: preview=%d schedule=%d", poller.preview.Load(), poller.schedule.Load())
	}
}

func TestWatcherKeepsPollingAfterErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	poller := &countingPoller{}
	poller.fail.Store(true)
	w, err := New(cfg, poller, WithIntervals(Intervals{Status: 5 * time.Millisecond}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	startWatcher(t, w)
	waitFor(t, func() bool { return poller.status.Load() >= 4 })
}

func TestWatcherLockIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fast := WithIntervals(Intervals{Status: 10 * time.Millisecond})

	first, err := New(cfg, &countingPoller{}, fast)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	stopFirst := startWatcher(t, first)
	waitFor(t, func() bool { return first.Polls("status") > 0 })

	second, err := New(cfg, &countingPoller{}, fast)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := second.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	if err := stopFirst(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	stop()
	if err := second.Run(ctx); err != nil {
		t.Fatalf("lock should be free after the first watcher stopped: %v", err)
	}
}

func TestWatcherReloadsIntervals(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	write := func(status int) {
		t.Helper()
		body := "[poll]\nstatus_interval = " + strconv.Itoa(status) + "\npreview_interval = 0\nschedule_interval = 0\n"
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	write(5)

	w, err := New(cfg, &countingPoller{}, WithConfigPath(path))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	startWatcher(t, w)
	waitFor(t, func() bool { return w.Polls("status") > 0 })

	write(7)
	waitFor(t, func() bool { return w.Intervals().Status == 7*time.Second })

	// An invalid file keeps the previous intervals.
	write(0)
	time.Sleep(100 * time.Millisecond)
	if got := w.Intervals().Status; got != 7*time.Second {
		t.Fatalf("invalid config should be ignored, got %s", got)
	}
}

func TestWatcherIgnoresTruncatedConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	write := func(body string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	write("[poll]\nstatus_interval = 7\n")

	w, err := New(cfg, &countingPoller{}, WithConfigPath(path))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	startWatcher(t, w)
	waitFor(t, func() bool { return w.Polls("status") > 0 })

	write("[poll]\nstatus_interval = 9\n")
	waitFor(t, func() bool { return w.Intervals().Status == 9*time.Second })

	write("")
	time.Sleep(3 * reloadDelay)
	if got := w.Intervals().Status; got != 9*time.Second {
		t.Fatalf("empty config should be ignored, got %s", got)
	}

	// Truncate then write, as an in-place editor save does.
	write("")
	write("[poll]\nstatus_interval = 11\n")
	waitFor(t, func() bool { return w.Intervals().Status == 11*time.Second })
}

func TestWatcherDrivesRecordingMonitor(t *testing.T) {
	fake := testsupport.NewFakeServer(t)
	fake.SetPreview("cHJldmlldw==")
	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(fake.URL))
	monitor := recording.New(fake.Client())

	w, err := New(cfg, monitor, WithIntervals(Intervals{
		Status:   10 * time.Millisecond,
		Preview:  10 * time.Millisecond,
		Schedule: 10 * time.Millisecond,
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	startWatcher(t, w)

	waitFor(t, func() bool {
		state := monitor.State()
		return state.IsConnected && state.PreviewImage == "cHJldmlldw==" && state.NextScheduled != nil
	})
}

func TestNewRejectsMissingStatusInterval(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := New(cfg, &countingPoller{}, WithIntervals(Intervals{})); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
