package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"scheinicam/internal/config"
	"scheinicam/internal/services"
)

const backendCheckTimeout = 5 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBackend asks the recorder for its status. A reachable backend whose
// OBS connection is down still fails the check.
func CheckBackend(ctx context.Context, baseURL string, probe StatusProber) Result {
	const name = "Backend"

	checkCtx, cancel := context.WithTimeout(ctx, backendCheckTimeout)
	defer cancel()

	status, err := probe.Status(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%s)", baseURL, summarizeBackendError(err))}
	}
	if !status.IsConnected {
		return Result{Name: name, Detail: fmt.Sprintf("%s (reachable, but OBS is not connected)", baseURL)}
	}
	state := "idle"
	if status.IsRecording {
		state = "recording"
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable, %s)", baseURL, state)}
}

// CheckWatcherLock reports whether a watcher already holds the lock. A held
// lock is not a failure; it only means `camctl watch` is running elsewhere.
func CheckWatcherLock(path string) Result {
	const name = "Watcher"

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if !locked {
		return Result{Name: name, Passed: true, Detail: "running (lock held)"}
	}
	if err := lock.Unlock(); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: release lock: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: "not running"}
}

// CheckNotifications verifies the ntfy topic answers. Disabled notifications pass.
func CheckNotifications(ctx context.Context, cfg *config.Config) Result {
	const name = "Notifications"

	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, cfg.NotificationTimeout())
	defer cancel()

	// ntfy answers GET /<topic>/json?poll=1 without publishing anything.
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, strings.TrimRight(topic, "/")+"/json?poll=1", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%v)", err)}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%v)", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{Name: name, Detail: "topic requires authentication"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%d)", resp.StatusCode)}
	}
}

// summarizeBackendError produces a short description for backend check failures.
func summarizeBackendError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	if errors.Is(err, services.ErrTransport) {
		return "unreachable: " + err.Error()
	}
	return err.Error()
}
