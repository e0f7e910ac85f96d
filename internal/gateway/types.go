package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// naiveLayouts cover the backend's isoformat() output for datetimes without an offset.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Timestamp decodes RFC 3339 or naive ISO datetimes. Naive values are
// interpreted in the local zone.
type Timestamp struct {
	time.Time
}

// ParseTimestamp parses a backend datetime string.
func ParseTimestamp(value string) (Timestamp, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Timestamp{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return Timestamp{Time: t}, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

func (t Timestamp) MarshalYAML() (any, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.Format(time.RFC3339), nil
}

// FileRef identifies the file currently being written. The status endpoint
// reports it as a bare filename, /current as an object; both decode here.
type FileRef struct {
	Filename  string     `json:"filename" yaml:"filename"`
	StartTime Timestamp  `json:"start_time" yaml:"start_time"`
	EndTime   *Timestamp `json:"end_time,omitempty" yaml:"end_time,omitempty"`
}

// Present reports whether the reference names a file.
func (f *FileRef) Present() bool {
	return f != nil && strings.TrimSpace(f.Filename) != ""
}

func (f *FileRef) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = FileRef{}
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return fmt.Errorf("file reference: %w", err)
		}
		*f = FileRef{Filename: name}
		return nil
	}
	type plain FileRef
	var decoded plain
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return fmt.Errorf("file reference: %w", err)
	}
	*f = FileRef(decoded)
	return nil
}

// presentOrNil normalizes an absent reference to nil.
func presentOrNil(ref *FileRef) *FileRef {
	if !ref.Present() {
		return nil
	}
	return ref
}

// RecordingStatus mirrors GET /api/recordings/status.
type RecordingStatus struct {
	IsRecording bool     `json:"is_recording"`
	IsConnected bool     `json:"is_connected"`
	CurrentFile *FileRef `json:"current_file,omitempty"`
}

// CommandResponse is returned by start and stop.
type CommandResponse struct {
	Success     bool     `json:"success"`
	Message     string   `json:"message,omitempty"`
	CurrentFile *FileRef `json:"current_file,omitempty"`
}

// PreviewResponse carries a base64 encoded screenshot.
type PreviewResponse struct {
	Success bool   `json:"success"`
	Image   string `json:"image,omitempty"`
}

// Schedule describes the next automatic recording. A schedule with only a
// Message means nothing is planned.
type Schedule struct {
	StartTime *Timestamp `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	EndTime   *Timestamp `json:"end_time,omitempty" yaml:"end_time,omitempty"`
	Weekday   string     `json:"weekday,omitempty" yaml:"weekday,omitempty"`
	Message   string     `json:"message,omitempty" yaml:"message,omitempty"`
}

// Planned reports whether the schedule names a start time.
func (s *Schedule) Planned() bool {
	return s != nil && s.StartTime != nil && !s.StartTime.IsZero()
}

// Video is one catalog entry. Size is only reported by the detail endpoint.
type Video struct {
	ID          string     `json:"id" yaml:"id"`
	Filename    string     `json:"filename" yaml:"filename"`
	StartTime   Timestamp  `json:"start_time" yaml:"start_time"`
	EndTime     *Timestamp `json:"end_time,omitempty" yaml:"end_time,omitempty"`
	Duration    *float64   `json:"duration,omitempty" yaml:"duration,omitempty"`
	IsRecording bool       `json:"is_recording" yaml:"is_recording"`
	SizeBytes   int64      `json:"size,omitempty" yaml:"size,omitempty"`
}

// FrameResponse carries a base64 encoded still.
type FrameResponse struct {
	Success   bool    `json:"success"`
	Frame     string  `json:"frame,omitempty"`
	Timestamp float64 `json:"timestamp,omitempty"`
}

// ExportRequest selects a subclip by offsets in seconds from the video start.
type ExportRequest struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// ExportedFile describes a finished subclip.
type ExportedFile struct {
	Filename string `json:"filename" yaml:"filename"`
	Size     int64  `json:"size" yaml:"size"`
	URL      string `json:"url" yaml:"url"`
}

// ExportResponse is returned by the export endpoint.
type ExportResponse struct {
	Success bool          `json:"success"`
	File    *ExportedFile `json:"file,omitempty"`
}

// AckResponse is the generic {success, message} acknowledgement.
type AckResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// LoginRequest is the login body.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse reports whether the password was accepted.
type LoginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
