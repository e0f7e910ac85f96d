package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"scheinicam/internal/logging"
	"scheinicam/internal/logs"
)

type localLogView struct {
	Path  string   `json:"path" yaml:"path"`
	Lines []string `json:"lines" yaml:"lines"`
}

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var day string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show camctl's own log file",
		Long: "Prints the tail of camctl's daily JSON log from the configured log " +
			"directory. Use `camctl admin logs` for the recorder's logs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			when := time.Now()
			if day != "" {
				parsed, err := time.ParseInLocation("2006-01-02", day, time.Local)
				if err != nil {
					return fmt.Errorf("--day must be YYYY-MM-DD: %w", err)
				}
				when = parsed
			}
			path := logging.DailyLogPath(ctx.config.Paths.LogDir, when)

			result, err := logs.Tail(path, lines)
			if err != nil {
				return err
			}
			if !follow {
				view := localLogView{Path: path, Lines: result.Lines}
				if view.Lines == nil {
					view.Lines = []string{}
				}
				return ctx.emit(cmd, view, func(w io.Writer) error {
					if len(view.Lines) == 0 {
						_, werr := fmt.Fprintf(w, "No log entries in %s\n", path)
						return werr
					}
					return writeLines(w, view.Lines...)
				})
			}

			out := cmd.OutOrStdout()
			if err := writeLines(out, result.Lines...); err != nil {
				return err
			}
			return logs.Follow(cmd.Context(), path, result.Offset, func(line string) error {
				_, werr := fmt.Fprintln(out, line)
				return werr
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show (0 for all)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().StringVar(&day, "day", "", "Show the log of another day (YYYY-MM-DD)")
	return cmd
}
