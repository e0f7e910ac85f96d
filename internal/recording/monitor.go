// Package recording mirrors the recorder state of the backend and issues
// start/stop commands.
//
// Every state change goes through apply, which enforces that a stopped
// recorder never reports a current file.
package recording

import (
	"context"
	"log/slog"

	"scheinicam/internal/gateway"
	"scheinicam/internal/logging"
	"scheinicam/internal/reactive"
	"scheinicam/internal/services"
)

const component = "recording"

// State is a snapshot of the recorder as last reported by the backend.
type State struct {
	IsRecording     bool              `json:"is_recording" yaml:"is_recording"`
	IsConnected     bool              `json:"is_connected" yaml:"is_connected"`
	CurrentFile     *gateway.FileRef  `json:"current_file,omitempty" yaml:"current_file,omitempty"`
	PreviewImage    string            `json:"-" yaml:"-"`
	NextScheduled   *gateway.Schedule `json:"next_scheduled,omitempty" yaml:"next_scheduled,omitempty"`
	Loading         bool              `json:"loading" yaml:"loading"`
	LastError       string            `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	UnexpectedStops int               `json:"unexpected_stops,omitempty" yaml:"unexpected_stops,omitempty"`
}

// Label summarizes the state for display.
func (s State) Label() string {
	switch {
	case !s.IsConnected:
		return "not connected"
	case s.LastError != "":
		return "error"
	case s.IsRecording:
		return "recording"
	default:
		return "ready"
	}
}

// HasError reports whether the recorder needs attention.
func (s State) HasError() bool {
	return !s.IsConnected || s.LastError != ""
}

// Gateway is the subset of backend calls the monitor needs.
type Gateway interface {
	Status(ctx context.Context) (gateway.RecordingStatus, error)
	Start(ctx context.Context) (gateway.CommandResponse, error)
	Stop(ctx context.Context) (gateway.CommandResponse, error)
	CurrentFile(ctx context.Context) (*gateway.FileRef, error)
	Preview(ctx context.Context) (gateway.PreviewResponse, error)
	NextScheduled(ctx context.Context) (*gateway.Schedule, error)
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logging.NewComponentLogger(logger, component)
	}
}

// Monitor is the recording state container. Operations may overlap; the last
// one to resolve wins.
type Monitor struct {
	gw     Gateway
	logger *slog.Logger
	state  *reactive.Value[State]
}

// New builds a Monitor in the disconnected, idle state.
func New(gw Gateway, opts ...Option) *Monitor {
	m := &Monitor{
		gw:     gw,
		logger: logging.NewComponentLogger(nil, component),
		state:  reactive.New(State{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current snapshot.
func (m *Monitor) State() State {
	return m.state.Load()
}

// Subscribe registers fn for state changes.
func (m *Monitor) Subscribe(fn func(State)) func() {
	return m.state.Subscribe(fn)
}

// apply mutates the state and re-establishes the stopped-means-no-file invariant.
func (m *Monitor) apply(fn func(*State)) State {
	next, _ := m.state.Update(func(st *State) bool {
		fn(st)
		if !st.IsRecording {
			st.CurrentFile = nil
		}
		return true
	})
	return next
}

func (m *Monitor) begin() {
	m.apply(func(st *State) {
		st.Loading = true
		st.LastError = ""
	})
}

func (m *Monitor) fail(ctx context.Context, operation string, err error) error {
	message := services.UserMessage(err)
	m.apply(func(st *State) {
		st.Loading = false
		st.LastError = message
	})
	return m.logFailure(ctx, operation, err)
}

// logFailure reports err without touching Loading or LastError.
func (m *Monitor) logFailure(ctx context.Context, operation string, err error) error {
	logging.WithContext(ctx, m.logger).Warn("recording operation failed",
		logging.Error(err),
		logging.String(logging.FieldEventType, operation+"_failed"),
		logging.String(logging.FieldErrorHint, "check the backend and the recorder connection"),
		logging.String(logging.FieldImpact, "recording state may be stale"),
	)
	return err
}

// FetchStatus refreshes recording and connection state. A recording that
// stops without a command from this client is logged as unexpected.
func (m *Monitor) FetchStatus(ctx context.Context) (gateway.RecordingStatus, error) {
	ctx = services.WithOperation(ctx, "fetch_status")
	m.begin()
	status, err := m.gw.Status(ctx)
	if err != nil {
		return gateway.RecordingStatus{}, m.fail(ctx, "fetch_status", err)
	}

	var (
		stoppedUnexpectedly bool
		lastFile            string
	)
	m.apply(func(st *State) {
		if st.IsRecording && !status.IsRecording {
			stoppedUnexpectedly = true
			st.UnexpectedStops++
			if st.CurrentFile != nil {
				lastFile = st.CurrentFile.Filename
			}
		}
		st.IsRecording = status.IsRecording
		st.IsConnected = status.IsConnected
		switch {
		case status.IsRecording && status.CurrentFile.Present():
			st.CurrentFile = status.CurrentFile
		case !status.IsRecording:
			st.CurrentFile = nil
		}
		st.Loading = false
	})
	if stoppedUnexpectedly {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "recording stopped unexpectedly", "recording_unexpected_stop",
			logging.String("last_file", lastFile),
			logging.Bool("connected", status.IsConnected),
			logging.String(logging.FieldErrorHint, "check the recorder host and its logs"),
			logging.String(logging.FieldImpact, "no recording is running"),
		)
	}
	return status, nil
}

// StartRecording starts a recording and then asks for the new current file.
// A failed follow-up is recorded but the recording stays marked as running.
func (m *Monitor) StartRecording(ctx context.Context) (gateway.CommandResponse, error) {
	ctx = services.WithOperation(ctx, "start_recording")
	m.begin()
	resp, err := m.gw.Start(ctx)
	if err != nil {
		return gateway.CommandResponse{}, m.fail(ctx, "start_recording", err)
	}
	if !resp.Success {
		return resp, m.fail(ctx, "start_recording", services.Declined(component, "start", resp.Message))
	}

	m.apply(func(st *State) {
		st.IsRecording = true
		if resp.CurrentFile.Present() {
			st.CurrentFile = resp.CurrentFile
		}
	})
	logging.WithContext(ctx, m.logger).Info("recording started",
		logging.String(logging.FieldEventType, "recording_started"),
	)

	current, err := m.gw.CurrentFile(ctx)
	if err != nil {
		return resp, m.fail(ctx, "start_recording", err)
	}
	m.apply(func(st *State) {
		st.CurrentFile = current
		st.Loading = false
	})
	return resp, nil
}

// StopRecording stops the recording. Errors leave the state untouched.
func (m *Monitor) StopRecording(ctx context.Context) (gateway.CommandResponse, error) {
	ctx = services.WithOperation(ctx, "stop_recording")
	m.begin()
	resp, err := m.gw.Stop(ctx)
	if err != nil {
		return gateway.CommandResponse{}, m.fail(ctx, "stop_recording", err)
	}
	if !resp.Success {
		return resp, m.fail(ctx, "stop_recording", services.Declined(component, "stop", resp.Message))
	}
	m.apply(func(st *State) {
		st.IsRecording = false
		st.CurrentFile = nil
		st.Loading = false
	})
	logging.WithContext(ctx, m.logger).Info("recording stopped",
		logging.String(logging.FieldEventType, "recording_stopped"),
	)
	return resp, nil
}

// FetchCurrentFile adopts the backend's current file.
func (m *Monitor) FetchCurrentFile(ctx context.Context) (*gateway.FileRef, error) {
	ctx = services.WithOperation(ctx, "fetch_current_file")
	m.begin()
	current, err := m.gw.CurrentFile(ctx)
	if err != nil {
		return nil, m.fail(ctx, "fetch_current_file", err)
	}
	m.apply(func(st *State) {
		st.CurrentFile = current
		st.Loading = false
	})
	return current, nil
}

// FetchPreview refreshes the screenshot. A reply without an image leaves the
// previous one in place. Loading and LastError belong to the status and
// command operations, so a preview poll never clears a status failure.
func (m *Monitor) FetchPreview(ctx context.Context) (gateway.PreviewResponse, error) {
	ctx = services.WithOperation(ctx, "fetch_preview")
	resp, err := m.gw.Preview(ctx)
	if err != nil {
		return gateway.PreviewResponse{}, m.logFailure(ctx, "fetch_preview", err)
	}
	if resp.Success && resp.Image != "" {
		m.apply(func(st *State) {
			st.PreviewImage = resp.Image
		})
	}
	return resp, nil
}

// FetchNextScheduled replaces the next scheduled recording, including with nil.
// Like FetchPreview it leaves Loading and LastError alone.
func (m *Monitor) FetchNextScheduled(ctx context.Context) (*gateway.Schedule, error) {
	ctx = services.WithOperation(ctx, "fetch_next_scheduled")
	schedule, err := m.gw.NextScheduled(ctx)
	if err != nil {
		return nil, m.logFailure(ctx, "fetch_next_scheduled", err)
	}
	m.apply(func(st *State) {
		st.NextScheduled = schedule
	})
	return schedule, nil
}
