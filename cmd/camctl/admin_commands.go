package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scheinicam/internal/admin"
	"scheinicam/internal/catalog"
	"scheinicam/internal/gateway"
	"scheinicam/internal/logs"
)

func newAdminCommand(ctx *commandContext) *cobra.Command {
	adminCmd := &cobra.Command{
		Use:         "admin",
		Short:       "Maintenance commands for the recording host",
		Annotations: authRequired(),
	}

	adminCmd.AddCommand(newAdminStatusCommand(ctx))
	adminCmd.AddCommand(newAdminMuteCommand(ctx, "mute", true))
	adminCmd.AddCommand(newAdminMuteCommand(ctx, "unmute", false))
	adminCmd.AddCommand(newAdminReloadCameraCommand(ctx))
	adminCmd.AddCommand(newAdminLogoCommand(ctx))
	adminCmd.AddCommand(newAdminPowerCommand(ctx, "shutdown", "Power off the recording host", (*admin.Panel).Shutdown))
	adminCmd.AddCommand(newAdminPowerCommand(ctx, "restart", "Reboot the recording host", (*admin.Panel).Restart))
	adminCmd.AddCommand(newAdminAudioCommand(ctx))
	adminCmd.AddCommand(newAdminLogsCommand(ctx))
	adminCmd.AddCommand(newAdminDeleteLogsCommand(ctx))

	return adminCmd
}

func newAdminStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show recorder, storage and audio watchdog status",
		RunE: func(cmd *cobra.Command, args []string) error {
			panel, err := ctx.adminPanel(cmd)
			if err != nil {
				return err
			}
			status, err := panel.FetchStatus(cmd.Context())
			if err != nil {
				return err
			}
			return ctx.emit(cmd, status, func(w io.Writer) error {
				colorize := shouldColorize(w)
				lines := renderSectionHeader("Recorder", colorize)
				lines = append(lines, connectionLine(status.OBS.Connected, colorize))
				if status.OBS.Recording {
					file := ""
					if status.OBS.CurrentFile != nil {
						file = *status.OBS.CurrentFile
					}
					lines = append(lines, renderStatusLine("Recording", statusWarn, file, colorize))
				} else {
					lines = append(lines, renderStatusLine("Recording", statusInfo, "idle", colorize))
				}
				lines = append(lines, renderStatusLine("Video", statusInfo, videoState(status.OBS.Muted), colorize))
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Storage", colorize)...)
				lines = append(lines, renderStatusLine("Recordings", statusInfo, strconv.Itoa(status.Files.Total), colorize))
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Audio watchdog", colorize)...)
				lines = append(lines, audioMonitorLines(status.AudioMonitor, ctx.config.Location(), colorize)...)
				return writeLines(w, lines...)
			})
		},
	}
}

func connectionLine(connected bool, colorize bool) string {
	if connected {
		return renderStatusLine("OBS", statusOK, "connected", colorize)
	}
	return renderStatusLine("OBS", statusError, "not connected", colorize)
}

func audioMonitorLines(monitor gateway.AudioMonitorStatus, loc *time.Location, colorize bool) []string {
	kind := statusOK
	state := "running"
	if !monitor.Running {
		kind = statusWarn
		state = "stopped"
	}
	lines := []string{renderStatusLine("Watchdog", kind, state, colorize)}
	failures := fmt.Sprintf("%d consecutive (threshold %d), %d of %d checks total",
		monitor.ConsecutiveFailures, monitor.FailureThreshold, monitor.TotalFailures, monitor.TotalChecks)
	failureKind := statusInfo
	if monitor.ConsecutiveFailures > 0 {
		failureKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Failures", failureKind, failures, colorize))
	lines = append(lines, renderStatusLine("Reloads", statusInfo, strconv.Itoa(monitor.CameraReloads), colorize))
	if monitor.LastCheckTime != nil && !monitor.LastCheckTime.IsZero() {
		lines = append(lines, renderStatusLine("Last check", statusInfo, monitor.LastCheckTime.In(loc).Format("2006-01-02 15:04:05"), colorize))
	}
	return lines
}

func videoState(muted bool) string {
	if muted {
		return "muted"
	}
	return "live"
}

type muteView struct {
	Muted bool `json:"muted" yaml:"muted"`
}

func newAdminMuteCommand(ctx *commandContext, use string, muted bool) *cobra.Command {
	short := "Mute the camera video"
	if !muted {
		short = "Unmute the camera video"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			panel, err := ctx.adminPanel(cmd)
			if err != nil {
				return err
			}
			resp, err := panel.SetMute(cmd.Context(), muted)
			if err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("the recorder refused to %s the video", use)
			}
			view := muteView{Muted: panel.State().IsMuted}
			return ctx.emit(cmd, view, func(w io.Writer) error {
				_, werr := fmt.Fprintf(w, "Video is now %s\n", videoState(view.Muted))
				return werr
			})
		},
	}
}

func newAdminReloadCameraCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reload-camera",
		Short: "Reinitialize the camera source",
		RunE: func(cmd *cobra.Command, args []string) error {
			panel, err := ctx.adminPanel(cmd)
			if err != nil {
				return err
			}
			resp, err := panel.ReloadCamera(cmd.Context())
			if err != nil {
				return err
			}
			return emitAck(ctx, cmd, resp, "Camera reloaded")
		},
	}
}

func newAdminLogoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "logo on|off",
		Short:     "Show or hide the overlay logo",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			panel, err := ctx.adminPanel(cmd)
			if err != nil {
				return err
			}
			visible := args[0] == "on"
			resp, err := panel.SetLogoVisibility(cmd.Context(), visible)
			if err != nil {
				return err
			}
			return ctx.emit(cmd, resp, func(w io.Writer) error {
				state := "hidden"
				if resp.Visible {
					state = "visible"
				}
				_, werr := fmt.Fprintf(w, "Logo is now %s\n", state)
				return werr
			})
		},
	}
}

type powerAction func(*admin.Panel, context.Context) (gateway.AckResponse, error)

func newAdminPowerCommand(ctx *commandContext, use, short string, action powerAction) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return fmt.Errorf("refusing to %s the recording host without --yes", use)
			}
			panel, err := ctx.adminPanel(cmd)
			if err != nil {
				return err
			}
			resp, err := action(panel, cmd.Context())
			if err != nil {
				return err
			}
			return emitAck(ctx, cmd, resp, fmt.Sprintf("%s requested", use))
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm the power action")
	return cmd
}

func emitAck(ctx *commandContext, cmd *cobra.Command, resp gateway.AckResponse, fallback string) error {
	return ctx.emit(cmd, resp, func(w io.Writer) error {
		message := resp.Message
		if message == "" {
			message = fallback
		}
		_, werr := fmt.Fprintln(w, message)
		return werr
	})
}

func newAdminAudioCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "audio",
		Short: "Probe the current audio level",
		RunE: func(cmd *cobra.Command, args []string) error {
			panel, err := ctx.adminPanel(cmd)
			if err != nil {
				return err
			}
			check, err := panel.CheckAudio(cmd.Context())
			if err != nil {
				return err
			}
			if !check.Success {
				return errors.New("the recorder could not measure the audio level")
			}
			return ctx.emit(cmd, check, func(w io.Writer) error {
				colorize := shouldColorize(w)
				if check.HasAudio {
					return writeLines(w, renderStatusLine("Audio", statusOK, fmt.Sprintf("signal present (range %.3f)", check.Range), colorize))
				}
				return writeLines(w, renderStatusLine("Audio", statusError, fmt.Sprintf("silence (range %.3f)", check.Range), colorize))
			})
		},
	}
}

func newAdminLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int

	cmd := &cobra.Command{
		Use:   "logs [FILENAME]",
		Short: "List backend log files or print one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			panel, err := ctx.adminPanel(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				content, err := panel.FetchLogFile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if lines > 0 {
					trimmed, err := logs.LastLines(strings.NewReader(content.Content), lines)
					if err != nil {
						return fmt.Errorf("read %s: %w", content.Filename, err)
					}
					content.Content = strings.Join(trimmed, "\n") + "\n"
				}
				return ctx.emit(cmd, content, func(w io.Writer) error {
					_, werr := io.WriteString(w, content.Content)
					return werr
				})
			}

			logs, err := panel.FetchLogs(cmd.Context())
			if err != nil {
				return err
			}
			tag := ctx.config.LocaleTag()
			loc := ctx.config.Location()
			return ctx.emit(cmd, logs, func(w io.Writer) error {
				if len(logs) == 0 {
					_, werr := fmt.Fprintln(w, "No log files")
					return werr
				}
				rows := make([][]string, 0, len(logs))
				for _, entry := range logs {
					modified := time.Unix(int64(entry.Modified), 0).In(loc).Format("2006-01-02 15:04")
					rows = append(rows, []string{entry.Filename, catalog.FormatFileSize(tag, entry.Size), modified})
				}
				_, werr := fmt.Fprintln(w, renderTable(
					[]string{"File", "Size", "Modified"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft},
				))
				return werr
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 0, "Only print the last N lines of FILENAME")
	return cmd
}

func newAdminDeleteLogsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-logs",
		Short: "Delete all backend log files",
		RunE: func(cmd *cobra.Command, args []string) error {
			panel, err := ctx.adminPanel(cmd)
			if err != nil {
				return err
			}
			resp, err := panel.DeleteLogs(cmd.Context())
			if err != nil {
				return err
			}
			return ctx.emit(cmd, resp, func(w io.Writer) error {
				_, werr := fmt.Fprintf(w, "Deleted %d log files\n", resp.Deleted)
				return werr
			})
		},
	}
}
