// Package admin is the state container behind the maintenance commands:
// recorder status, mute and logo toggles, camera reload, host power control,
// audio probes and backend log housekeeping.
package admin

import (
	"context"
	"log/slog"
	"slices"

	"scheinicam/internal/gateway"
	"scheinicam/internal/logging"
	"scheinicam/internal/reactive"
	"scheinicam/internal/services"
)

const component = "admin"

// State is an immutable snapshot of the admin panel.
type State struct {
	IsMuted      bool                        `json:"is_muted"`
	OBS          *gateway.OBSStatus          `json:"obs,omitempty"`
	Files        *gateway.FilesSummary       `json:"files,omitempty"`
	AudioMonitor *gateway.AudioMonitorStatus `json:"audio_monitor,omitempty"`
	AudioCheck   *gateway.AudioCheck         `json:"audio_check,omitempty"`
	Logs         []gateway.LogFile           `json:"logs"`
	Loading      bool                        `json:"loading"`
	LastError    string                      `json:"last_error,omitempty"`
}

// Gateway is the subset of backend calls the panel needs.
type Gateway interface {
	AdminStatus(ctx context.Context) (gateway.AdminStatus, error)
	SetMute(ctx context.Context, muted bool) (gateway.MuteResponse, error)
	ReloadCamera(ctx context.Context) (gateway.AckResponse, error)
	SetLogo(ctx context.Context, visible bool) (gateway.LogoResponse, error)
	Shutdown(ctx context.Context) (gateway.AckResponse, error)
	Restart(ctx context.Context) (gateway.AckResponse, error)
	CheckAudio(ctx context.Context) (gateway.AudioCheck, error)
	AudioMonitor(ctx context.Context) (gateway.AudioMonitorStatus, error)
	Logs(ctx context.Context) ([]gateway.LogFile, error)
	LogFile(ctx context.Context, filename string) (gateway.LogContent, error)
	DeleteLogs(ctx context.Context) (gateway.DeleteLogsResponse, error)
}

// Option customizes a Panel.
type Option func(*Panel)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Panel) {
		p.logger = logging.NewComponentLogger(logger, component)
	}
}

// Panel is the admin state container.
type Panel struct {
	gw     Gateway
	logger *slog.Logger
	state  *reactive.Value[State]
}

// New builds an empty panel.
func New(gw Gateway, opts ...Option) *Panel {
	p := &Panel{
		gw:     gw,
		logger: logging.NewComponentLogger(nil, component),
		state:  reactive.New(State{Logs: []gateway.LogFile{}}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current snapshot.
func (p *Panel) State() State {
	return p.state.Load()
}

// Subscribe registers fn for state changes.
func (p *Panel) Subscribe(fn func(State)) func() {
	return p.state.Subscribe(fn)
}

// run performs one gateway call with the shared loading and error bookkeeping.
// apply runs only on success.
func run[T any](ctx context.Context, p *Panel, operation string, call func(context.Context) (T, error), apply func(*State, T)) (T, error) {
	ctx = services.WithOperation(ctx, operation)
	p.state.Update(func(st *State) bool {
		st.Loading = true
		st.LastError = ""
		return true
	})

	result, err := call(ctx)
	if err != nil {
		message := services.UserMessage(err)
		p.state.Update(func(st *State) bool {
			st.Loading = false
			st.LastError = message
			return true
		})
		logging.WithContext(ctx, p.logger).Warn("admin operation failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, operation+"_failed"),
			logging.String(logging.FieldErrorHint, "check the backend connection and credentials"),
		)
		var zero T
		return zero, err
	}

	p.state.Update(func(st *State) bool {
		if apply != nil {
			apply(st, result)
		}
		st.Loading = false
		return true
	})
	return result, nil
}

// FetchStatus refreshes recorder, file and audio monitor information.
func (p *Panel) FetchStatus(ctx context.Context) (gateway.AdminStatus, error) {
	return run(ctx, p, "fetch_admin_status", p.gw.AdminStatus, func(st *State, status gateway.AdminStatus) {
		obs := status.OBS
		files := status.Files
		monitor := status.AudioMonitor
		st.OBS = &obs
		st.Files = &files
		st.AudioMonitor = &monitor
	})
}

// SetMute mutes or unmutes the video. IsMuted follows the server's echo and
// only changes when the server reports success.
func (p *Panel) SetMute(ctx context.Context, muted bool) (gateway.MuteResponse, error) {
	return run(ctx, p, "set_mute", func(ctx context.Context) (gateway.MuteResponse, error) {
		return p.gw.SetMute(ctx, muted)
	}, func(st *State, resp gateway.MuteResponse) {
		if resp.Success {
			st.IsMuted = resp.Muted
		}
	})
}

// ReloadCamera reinitializes the camera source.
func (p *Panel) ReloadCamera(ctx context.Context) (gateway.AckResponse, error) {
	resp, err := run(ctx, p, "reload_camera", p.gw.ReloadCamera, nil)
	if err == nil {
		p.audit(ctx, "camera_reloaded", "camera reload requested")
	}
	return resp, err
}

// SetLogoVisibility shows or hides the overlay logo.
func (p *Panel) SetLogoVisibility(ctx context.Context, visible bool) (gateway.LogoResponse, error) {
	return run(ctx, p, "set_logo", func(ctx context.Context) (gateway.LogoResponse, error) {
		return p.gw.SetLogo(ctx, visible)
	}, nil)
}

// Shutdown powers off the recording host.
func (p *Panel) Shutdown(ctx context.Context) (gateway.AckResponse, error) {
	resp, err := run(ctx, p, "shutdown", p.gw.Shutdown, nil)
	if err == nil {
		p.audit(ctx, "host_shutdown", "host shutdown requested")
	}
	return resp, err
}

// Restart reboots the recording host.
func (p *Panel) Restart(ctx context.Context) (gateway.AckResponse, error) {
	resp, err := run(ctx, p, "restart", p.gw.Restart, nil)
	if err == nil {
		p.audit(ctx, "host_restart", "host restart requested")
	}
	return resp, err
}

// CheckAudio probes the audio level and keeps the result.
func (p *Panel) CheckAudio(ctx context.Context) (gateway.AudioCheck, error) {
	return run(ctx, p, "check_audio", p.gw.CheckAudio, func(st *State, check gateway.AudioCheck) {
		st.AudioCheck = &check
	})
}

// FetchAudioMonitor refreshes the audio watchdog counters.
func (p *Panel) FetchAudioMonitor(ctx context.Context) (gateway.AudioMonitorStatus, error) {
	return run(ctx, p, "fetch_audio_monitor", p.gw.AudioMonitor, func(st *State, monitor gateway.AudioMonitorStatus) {
		st.AudioMonitor = &monitor
	})
}

// FetchLogs replaces the backend log listing.
func (p *Panel) FetchLogs(ctx context.Context) ([]gateway.LogFile, error) {
	return run(ctx, p, "fetch_logs", p.gw.Logs, func(st *State, logs []gateway.LogFile) {
		st.Logs = slices.Clone(logs)
	})
}

// FetchLogFile returns one backend log file. The state only tracks loading
// and errors.
func (p *Panel) FetchLogFile(ctx context.Context, filename string) (gateway.LogContent, error) {
	return run(ctx, p, "fetch_log_file", func(ctx context.Context) (gateway.LogContent, error) {
		return p.gw.LogFile(ctx, filename)
	}, nil)
}

// DeleteLogs removes the backend logs and empties the local listing.
func (p *Panel) DeleteLogs(ctx context.Context) (gateway.DeleteLogsResponse, error) {
	return run(ctx, p, "delete_logs", p.gw.DeleteLogs, func(st *State, _ gateway.DeleteLogsResponse) {
		st.Logs = []gateway.LogFile{}
	})
}

func (p *Panel) audit(ctx context.Context, eventType, msg string) {
	logging.WithContext(ctx, p.logger).Info(msg, logging.String(logging.FieldEventType, eventType))
}
