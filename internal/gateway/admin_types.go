package gateway

import "encoding/json"

// OBSStatus is the recorder state embedded in the admin status.
type OBSStatus struct {
	Connected   bool    `json:"connected" yaml:"connected"`
	Recording   bool    `json:"recording" yaml:"recording"`
	Muted       bool    `json:"muted" yaml:"muted"`
	CurrentFile *string `json:"current_file,omitempty" yaml:"current_file,omitempty"`
}

// FilesSummary counts the stored recordings.
type FilesSummary struct {
	Total  int             `json:"total" yaml:"total"`
	Newest json.RawMessage `json:"newest,omitempty" yaml:"-"`
}

// AudioMonitorStatus reports the backend's automatic audio watchdog.
type AudioMonitorStatus struct {
	Running             bool       `json:"running" yaml:"running"`
	ConsecutiveFailures int        `json:"consecutive_failures" yaml:"consecutive_failures"`
	TotalChecks         int        `json:"total_checks" yaml:"total_checks"`
	TotalFailures       int        `json:"total_failures" yaml:"total_failures"`
	CameraReloads       int        `json:"camera_reloads" yaml:"camera_reloads"`
	LastCheckTime       *Timestamp `json:"last_check_time,omitempty" yaml:"last_check_time,omitempty"`
	LastFailureTime     *Timestamp `json:"last_failure_time,omitempty" yaml:"last_failure_time,omitempty"`
	CheckInterval       float64    `json:"check_interval" yaml:"check_interval"`
	FailureThreshold    int        `json:"failure_threshold" yaml:"failure_threshold"`
}

// AdminStatus mirrors GET /api/admin/status.
type AdminStatus struct {
	OBS          OBSStatus          `json:"obs" yaml:"obs"`
	Files        FilesSummary       `json:"files" yaml:"files"`
	AudioMonitor AudioMonitorStatus `json:"audio_monitor" yaml:"audio_monitor"`
}

// MuteRequest toggles the video mute.
type MuteRequest struct {
	Muted bool `json:"muted"`
}

// MuteResponse echoes the applied mute state.
type MuteResponse struct {
	Success bool `json:"success"`
	Muted   bool `json:"muted"`
}

// LogoRequest toggles the overlay logo.
type LogoRequest struct {
	Visible bool `json:"visible"`
}

// LogoResponse echoes the applied logo visibility.
type LogoResponse struct {
	Success bool `json:"success"`
	Visible bool `json:"visible"`
}

// AudioCheck is the result of a manual audio level probe.
type AudioCheck struct {
	Success  bool    `json:"success" yaml:"success"`
	Range    float64 `json:"range" yaml:"range"`
	HasAudio bool    `json:"has_audio" yaml:"has_audio"`
}

// LogFile lists one backend log file. Modified is a unix timestamp.
type LogFile struct {
	Filename string  `json:"filename" yaml:"filename"`
	Size     int64   `json:"size" yaml:"size"`
	Modified float64 `json:"modified" yaml:"modified"`
}

// LogsResponse wraps the log listing.
type LogsResponse struct {
	Logs []LogFile `json:"logs"`
}

// LogContent is the body of a single backend log file.
type LogContent struct {
	Filename string `json:"filename" yaml:"filename"`
	Content  string `json:"content" yaml:"content"`
	Size     int64  `json:"size" yaml:"size"`
}

// DeleteLogsResponse reports how many log files were removed.
type DeleteLogsResponse struct {
	Success bool `json:"success"`
	Deleted int  `json:"deleted,omitempty"`
}
