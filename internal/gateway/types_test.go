package gateway_test

import (
	"encoding/json"
	"testing"
	"time"

	"scheinicam/internal/gateway"
)

func TestParseTimestampFormats(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2026-03-01T09:30:00Z", time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)},
		{"2026-03-01T09:30:00+01:00", time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)},
		{"2026-03-01T09:30:00.123456", time.Date(2026, 3, 1, 9, 30, 0, 123456000, time.Local)},
		{"2026-03-01T09:30:00", time.Date(2026, 3, 1, 9, 30, 0, 0, time.Local)},
	}
	for _, tt := range tests {
		got, err := gateway.ParseTimestamp(tt.input)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", tt.input, err)
		}
		if !got.Equal(tt.want) {
			t.Fatalf("ParseTimestamp(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
	if _, err := gateway.ParseTimestamp("yesterday"); err == nil {
		t.Fatal("expected error for unrecognized timestamp")
	}
}

func TestFileRefAcceptsStringObjectAndNull(t *testing.T) {
	var payload struct {
		A *gateway.FileRef `json:"a"`
		B *gateway.FileRef `json:"b"`
		C *gateway.FileRef `json:"c"`
	}
	data := []byte(`{"a":"rec.mp4","b":{"filename":"obj.mp4","start_time":"2026-03-01T09:30:00","end_time":null},"c":null}`)
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !payload.A.Present() || payload.A.Filename != "rec.mp4" {
		t.Fatalf("string form: %+v", payload.A)
	}
	if !payload.B.Present() || payload.B.StartTime.IsZero() || payload.B.EndTime != nil {
		t.Fatalf("object form: %+v", payload.B)
	}
	if payload.C.Present() {
		t.Fatalf("null form should be absent: %+v", payload.C)
	}
}

func TestVideoSizeUsesSizeKey(t *testing.T) {
	var video gateway.Video
	data := []byte(`{"id":"a.mp4","filename":"a.mp4","start_time":"2026-03-01T09:30:00","end_time":null,"duration":null,"is_recording":true,"size":2048}`)
	if err := json.Unmarshal(data, &video); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if video.SizeBytes != 2048 || !video.IsRecording || video.Duration != nil {
		t.Fatalf("unexpected video: %+v", video)
	}
}
