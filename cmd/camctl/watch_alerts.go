package main

import (
	"context"
	"log/slog"
	"sync"

	"scheinicam/internal/logging"
	"scheinicam/internal/notifications"
	"scheinicam/internal/recording"
)

type alert struct {
	event   notifications.Event
	payload notifications.Payload
}

// alertTracker turns recorder state changes into alerts. Loading snapshots are
// ignored and the first settled snapshot only sets the baseline.
type alertTracker struct {
	backend string
	seen    bool
	prev    recording.State
}

func (a *alertTracker) observe(state recording.State) []alert {
	if state.Loading {
		return nil
	}
	prev, seen := a.prev, a.seen
	a.prev, a.seen = state, true
	if !seen {
		return nil
	}

	var alerts []alert
	if state.UnexpectedStops > prev.UnexpectedStops {
		file := ""
		if prev.CurrentFile != nil {
			file = prev.CurrentFile.Filename
		}
		alerts = append(alerts, alert{
			event:   notifications.EventRecordingStopped,
			payload: notifications.Payload{"file": file, "backend": a.backend},
		})
	}
	switch {
	case prev.IsConnected && !state.IsConnected:
		alerts = append(alerts, alert{
			event:   notifications.EventConnectionLost,
			payload: notifications.Payload{"backend": a.backend},
		})
	case !prev.IsConnected && state.IsConnected:
		alerts = append(alerts, alert{
			event:   notifications.EventConnectionRestored,
			payload: notifications.Payload{"backend": a.backend},
		})
	}
	return alerts
}

// alertDispatcher publishes alerts off the polling goroutine. When the queue
// is full further alerts are dropped and logged.
type alertDispatcher struct {
	svc    notifications.Service
	logger *slog.Logger

	mu     sync.Mutex
	queue  chan alert
	closed bool
	wg     sync.WaitGroup
}

func newAlertDispatcher(ctx context.Context, svc notifications.Service, logger *slog.Logger) *alertDispatcher {
	d := &alertDispatcher{svc: svc, logger: logger, queue: make(chan alert, 8)}
	// Queued alerts still go out while the watcher shuts down.
	sendCtx := context.WithoutCancel(ctx)
	d.wg.Go(func() {
		for a := range d.queue {
			if err := d.svc.Publish(sendCtx, a.event, a.payload); err != nil {
				logging.WarnWithContext(d.logger, "notification failed", "notification_failed",
					logging.String("event", string(a.event)),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
					logging.String(logging.FieldImpact, "alert was not delivered"),
				)
			}
		}
	})
	return d
}

func (d *alertDispatcher) send(alerts ...alert) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	for _, a := range alerts {
		select {
		case d.queue <- a:
		default:
			d.logger.Warn("notification queue full, dropping alert", logging.String("event", string(a.event)))
		}
	}
}

// close stops accepting alerts and waits for queued ones to be sent.
func (d *alertDispatcher) close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
