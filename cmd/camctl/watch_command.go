package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"scheinicam/internal/logging"
	"scheinicam/internal/monitor"
	"scheinicam/internal/notifications"
	"scheinicam/internal/recording"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll the recorder and print status changes until interrupted",
		Long: "Polls recording status, the preview screenshot and the next scheduled " +
			"recording on the intervals from the [poll] config section. Interval " +
			"changes in the config file apply without a restart. Only one watcher " +
			"runs per state directory. With notifications.ntfy_topic set, unexpected " +
			"stops and lost connections are also posted to ntfy.",
		Annotations: authRequired(),
		RunE: func(cmd *cobra.Command, args []string) error {
			recorder, err := ctx.recordingMonitor(cmd)
			if err != nil {
				return err
			}
			logger, err := ctx.loggerFor(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			loc := ctx.config.Location()

			notifier := notifications.NewService(ctx.config)
			var dispatcher *alertDispatcher
			if notifications.Enabled(notifier) {
				dispatcher = newAlertDispatcher(cmd.Context(), notifier, logger)
				defer dispatcher.close()
			}
			tracker := &alertTracker{backend: ctx.config.Server.BaseURL}

			var last string
			unsubscribe := recorder.Subscribe(func(state recording.State) {
				if alerts := tracker.observe(state); dispatcher != nil && len(alerts) > 0 {
					dispatcher.send(alerts...)
				}
				if state.Loading {
					return
				}
				view := newRecordingStatusView(state)
				summary := watchSummary(view, loc)
				if summary == last {
					return
				}
				last = summary
				line := time.Now().In(loc).Format("15:04:05") + " " + summary
				if colorize {
					line = statusKindColor(watchKind(view)) + line + ansiReset
				}
				fmt.Fprintln(out, line)
			})
			defer unsubscribe()

			opts := []monitor.Option{monitor.WithLogger(logger)}
			if ctx.configPath != "" {
				opts = append(opts, monitor.WithConfigPath(ctx.configPath))
			}
			watcher, err := monitor.New(ctx.config, recorder, opts...)
			if err != nil {
				return err
			}
			logger.Debug("starting watcher", logging.String("config", ctx.configPath))
			return watcher.Run(cmd.Context())
		},
	}
}

func watchSummary(view recordingStatusView, loc *time.Location) string {
	switch {
	case !view.Connected:
		return "recorder not connected"
	case view.LastError != "":
		return "error: " + view.LastError
	case view.Recording:
		return "recording " + describeFile(view.CurrentFile, loc)
	default:
		return "ready"
	}
}

func watchKind(view recordingStatusView) statusKind {
	switch {
	case !view.Connected || view.LastError != "":
		return statusError
	case view.Recording:
		return statusWarn
	default:
		return statusOK
	}
}
