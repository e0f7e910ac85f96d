package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scheinicam/internal/fileutil"
	"scheinicam/internal/gateway"
	"scheinicam/internal/recording"
)

type recordingStatusView struct {
	Status      string            `json:"status" yaml:"status"`
	Recording   bool              `json:"recording" yaml:"recording"`
	Connected   bool              `json:"connected" yaml:"connected"`
	CurrentFile *gateway.FileRef  `json:"current_file,omitempty" yaml:"current_file,omitempty"`
	Next        *gateway.Schedule `json:"next_scheduled,omitempty" yaml:"next_scheduled,omitempty"`
	LastError   string            `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

func newRecordingStatusView(state recording.State) recordingStatusView {
	return recordingStatusView{
		Status:      state.Label(),
		Recording:   state.IsRecording,
		Connected:   state.IsConnected,
		CurrentFile: state.CurrentFile,
		Next:        state.NextScheduled,
		LastError:   state.LastError,
	}
}

func newRecordingCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newStatusCommand(ctx),
		newStartCommand(ctx),
		newStopCommand(ctx),
		newPreviewCommand(ctx),
		newNextCommand(ctx),
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "status",
		Short:       "Show recorder connection and recording state",
		Annotations: authRequired(),
		RunE: func(cmd *cobra.Command, args []string) error {
			monitor, err := ctx.recordingMonitor(cmd)
			if err != nil {
				return err
			}
			status, err := monitor.FetchStatus(cmd.Context())
			if err != nil {
				return err
			}
			// The status endpoint only names the file; /current adds the start time.
			if status.IsRecording {
				if _, err := monitor.FetchCurrentFile(cmd.Context()); err != nil {
					return err
				}
			}
			view := newRecordingStatusView(monitor.State())
			return ctx.emit(cmd, view, func(w io.Writer) error {
				return writeLines(w, recordingStatusLines(view, ctx.config.Location(), shouldColorize(w))...)
			})
		},
	}
}

func recordingStatusLines(view recordingStatusView, loc *time.Location, colorize bool) []string {
	lines := make([]string, 0, 3)
	if view.Connected {
		lines = append(lines, renderStatusLine("Recorder", statusOK, "connected", colorize))
	} else {
		lines = append(lines, renderStatusLine("Recorder", statusError, "not connected", colorize))
	}
	switch {
	case view.Recording:
		lines = append(lines, renderStatusLine("Recording", statusWarn, describeFile(view.CurrentFile, loc), colorize))
	default:
		lines = append(lines, renderStatusLine("Recording", statusInfo, "idle", colorize))
	}
	if view.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, view.LastError, colorize))
	}
	return lines
}

func describeFile(file *gateway.FileRef, loc *time.Location) string {
	if file == nil || file.Filename == "" {
		return "recording"
	}
	if file.StartTime.IsZero() {
		return file.Filename
	}
	return fmt.Sprintf("%s since %s", file.Filename, file.StartTime.In(loc).Format("15:04:05"))
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "start",
		Short:       "Start a recording",
		Annotations: authRequired(),
		RunE: func(cmd *cobra.Command, args []string) error {
			monitor, err := ctx.recordingMonitor(cmd)
			if err != nil {
				return err
			}
			resp, err := monitor.StartRecording(cmd.Context())
			if err != nil && !monitor.State().IsRecording {
				return err
			}
			view := newRecordingStatusView(monitor.State())
			if emitErr := ctx.emit(cmd, view, func(w io.Writer) error {
				message := "Recording started"
				if resp.Message != "" {
					message = resp.Message
				}
				_, werr := fmt.Fprintf(w, "%s: %s\n", message, describeFile(view.CurrentFile, ctx.config.Location()))
				return werr
			}); emitErr != nil {
				return emitErr
			}
			// Started, but the follow-up file lookup failed.
			return err
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "stop",
		Short:       "Stop the running recording",
		Annotations: authRequired(),
		RunE: func(cmd *cobra.Command, args []string) error {
			monitor, err := ctx.recordingMonitor(cmd)
			if err != nil {
				return err
			}
			resp, err := monitor.StopRecording(cmd.Context())
			if err != nil {
				return err
			}
			return ctx.emit(cmd, newRecordingStatusView(monitor.State()), func(w io.Writer) error {
				message := resp.Message
				if message == "" {
					message = "Recording stopped"
				}
				_, werr := fmt.Fprintln(w, message)
				return werr
			})
		},
	}
}

type imageFileView struct {
	Path  string `json:"path" yaml:"path"`
	Bytes int    `json:"bytes" yaml:"bytes"`
}

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:         "preview",
		Short:       "Save the current camera screenshot",
		Annotations: authRequired(),
		RunE: func(cmd *cobra.Command, args []string) error {
			monitor, err := ctx.recordingMonitor(cmd)
			if err != nil {
				return err
			}
			if _, err := monitor.FetchPreview(cmd.Context()); err != nil {
				return err
			}
			image := monitor.State().PreviewImage
			if image == "" {
				return errors.New("the recorder returned no preview image")
			}
			written, err := writeImage(output, image)
			if err != nil {
				return err
			}
			view := imageFileView{Path: output, Bytes: written}
			return ctx.emit(cmd, view, func(w io.Writer) error {
				_, werr := fmt.Fprintf(w, "Wrote preview to %s (%d bytes)\n", view.Path, view.Bytes)
				return werr
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "preview.jpg", "Destination image file")
	return cmd
}

// writeImage decodes a base64 image, optionally wrapped in a data URL, to path.
func writeImage(path, encoded string) (int, error) {
	if idx := strings.Index(encoded, ";base64,"); idx >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[idx+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return 0, fmt.Errorf("decode image: %w", err)
	}
	if err := fileutil.WriteBytesAtomic(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("write image: %w", err)
	}
	return len(data), nil
}

func newNextCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "next",
		Short:       "Show the next scheduled recording",
		Annotations: authRequired(),
		RunE: func(cmd *cobra.Command, args []string) error {
			monitor, err := ctx.recordingMonitor(cmd)
			if err != nil {
				return err
			}
			schedule, err := monitor.FetchNextScheduled(cmd.Context())
			if err != nil {
				return err
			}
			return ctx.emit(cmd, schedule, func(w io.Writer) error {
				_, werr := fmt.Fprintln(w, describeSchedule(schedule, ctx.config.Location()))
				return werr
			})
		},
	}
}

func describeSchedule(schedule *gateway.Schedule, loc *time.Location) string {
	switch {
	case schedule == nil:
		return "No scheduled recordings"
	case !schedule.Planned():
		if schedule.Message != "" {
			return schedule.Message
		}
		return "No scheduled recordings"
	}
	start := schedule.StartTime.In(loc)
	text := "Next recording: "
	if schedule.Weekday != "" {
		text += schedule.Weekday + ", "
	}
	text += start.Format("2006-01-02 15:04")
	if schedule.EndTime != nil && !schedule.EndTime.IsZero() {
		text += " - " + schedule.EndTime.In(loc).Format("15:04")
	}
	return text
}
