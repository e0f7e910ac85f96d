package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scheinicam/internal/config"
)

const userAgent = "scheinicam-camctl/1.0"

// Event identifies an alert type.
type Event string

const (
	EventRecordingStopped   Event = "recording_stopped"
	EventConnectionLost     Event = "connection_lost"
	EventConnectionRestored Event = "connection_restored"
	EventTest               Event = "test"
)

// Payload carries event details. Known keys are "file" and "backend".
type Payload map[string]string

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy publisher when a topic is configured and a no-op
// otherwise.
func NewService(cfg *config.Config) Service {
	if cfg == nil || strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return noopService{}
	}
	timeout := cfg.NotificationTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: strings.TrimSpace(cfg.Notifications.NtfyTopic),
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether svc actually delivers anything.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

func format(event Event, payload Payload) (message, error) {
	backend := strings.TrimSpace(payload["backend"])
	if backend == "" {
		backend = "the recorder"
	}
	switch event {
	case EventRecordingStopped:
		body := "Recording stopped unexpectedly"
		if file := strings.TrimSpace(payload["file"]); file != "" {
			body += ": " + file
		}
		return message{
			title:    "Scheinicam - Recording Stopped",
			body:     body,
			tags:     []string{"scheinicam", "recording", "warning"},
			priority: "high",
		}, nil
	case EventConnectionLost:
		return message{
			title:    "Scheinicam - Recorder Offline",
			body:     "Lost connection to " + backend,
			tags:     []string{"scheinicam", "connection", "lost"},
			priority: "high",
		}, nil
	case EventConnectionRestored:
		return message{
			title: "Scheinicam - Recorder Online",
			body:  "Connection to " + backend + " restored",
			tags:  []string{"scheinicam", "connection", "restored"},
		}, nil
	case EventTest:
		return message{
			title:    "Scheinicam - Test",
			body:     "Notification system test",
			tags:     []string{"scheinicam", "test"},
			priority: "low",
		}, nil
	default:
		return message{}, fmt.Errorf("unknown notification event %q", event)
	}
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, err := format(event, payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", msg.title)
	req.Header.Set("Tags", strings.Join(msg.tags, ","))
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
