package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"scheinicam/internal/catalog"
	"scheinicam/internal/fileutil"
	"scheinicam/internal/gateway"
	"scheinicam/internal/textutil"
)

type videoView struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	Filename  string   `json:"filename" yaml:"filename"`
	StartTime string   `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	Duration  *float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
	Size      string   `json:"size,omitempty" yaml:"size,omitempty"`
	SizeBytes int64    `json:"size_bytes,omitempty" yaml:"size_bytes,omitempty"`
	Recording bool     `json:"recording" yaml:"recording"`
}

func newVideoView(cat *catalog.Catalog, video gateway.Video, loc *time.Location) videoView {
	view := videoView{
		ID:        video.ID,
		Name:      catalog.DisplayName(video, cat.Locale(), loc),
		Filename:  video.Filename,
		Duration:  video.Duration,
		SizeBytes: video.SizeBytes,
		Recording: video.IsRecording,
	}
	if !video.StartTime.IsZero() {
		view.StartTime = video.StartTime.In(loc).Format(time.RFC3339)
	}
	if video.SizeBytes > 0 {
		view.Size = cat.FormatFileSize(video.SizeBytes)
	}
	return view
}

func formatDuration(seconds *float64) string {
	if seconds == nil {
		return "-"
	}
	return (time.Duration(*seconds * float64(time.Second))).Round(time.Second).String()
}

func newVideosCommand(ctx *commandContext) *cobra.Command {
	videosCmd := &cobra.Command{
		Use:         "videos",
		Short:       "Browse and manage recorded videos",
		Annotations: authRequired(),
	}

	videosCmd.AddCommand(newVideosListCommand(ctx))
	videosCmd.AddCommand(newVideosShowCommand(ctx))
	videosCmd.AddCommand(newVideosFrameCommand(ctx))
	videosCmd.AddCommand(newVideosExportCommand(ctx))
	videosCmd.AddCommand(newVideosDownloadCommand(ctx))
	videosCmd.AddCommand(newVideosDeleteCommand(ctx))

	return videosCmd
}

func newVideosListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recorded videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := ctx.videoCatalog(cmd)
			if err != nil {
				return err
			}
			if _, err := cat.FetchVideos(cmd.Context()); err != nil {
				return err
			}
			loc := ctx.config.Location()
			videos := cat.State().Videos
			views := make([]videoView, 0, len(videos))
			for _, video := range videos {
				views = append(views, newVideoView(cat, video, loc))
			}
			return ctx.emit(cmd, views, func(w io.Writer) error {
				if len(views) == 0 {
					_, werr := fmt.Fprintln(w, "No recordings")
					return werr
				}
				rows := make([][]string, 0, len(views))
				for _, view := range views {
					state := ""
					if view.Recording {
						state = "recording"
					}
					rows = append(rows, []string{view.ID, view.Name, formatDuration(view.Duration), state})
				}
				_, werr := fmt.Fprintln(w, renderTable(
					[]string{"ID", "Name", "Duration", "State"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
				))
				return werr
			})
		},
	}
}

func newVideosShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show details for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := ctx.videoCatalog(cmd)
			if err != nil {
				return err
			}
			video, err := cat.SelectVideo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			view := newVideoView(cat, video, ctx.config.Location())
			return ctx.emit(cmd, view, func(w io.Writer) error {
				size := view.Size
				if size == "" {
					size = catalog.FormatFileSize(cat.Locale(), 0)
				}
				_, werr := fmt.Fprintln(w, renderDetails([][2]string{
					{"ID", view.ID},
					{"Name", view.Name},
					{"File", view.Filename},
					{"Started", view.StartTime},
					{"Duration", formatDuration(view.Duration)},
					{"Size", size},
					{"Recording", yesNo(view.Recording)},
				}))
				return werr
			})
		},
	}
}

func newVideosFrameCommand(ctx *commandContext) *cobra.Command {
	var at float64
	var output string

	cmd := &cobra.Command{
		Use:   "frame ID",
		Short: "Save a still frame from a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := ctx.videoCatalog(cmd)
			if err != nil {
				return err
			}
			result, err := cat.FetchFrame(cmd.Context(), args[0], at)
			if err != nil {
				return err
			}
			if !result.Applied {
				return fmt.Errorf("no frame available at %s seconds", strconv.FormatFloat(at, 'f', -1, 64))
			}
			target := output
			if target == "" {
				target = fmt.Sprintf("frame-%s-%s.jpg", textutil.SanitizeToken(args[0]), strconv.FormatFloat(at, 'f', -1, 64))
			}
			written, err := writeImage(target, cat.State().PreviewFrame)
			if err != nil {
				return err
			}
			view := imageFileView{Path: target, Bytes: written}
			return ctx.emit(cmd, view, func(w io.Writer) error {
				_, werr := fmt.Fprintf(w, "Wrote frame to %s (%d bytes)\n", view.Path, view.Bytes)
				return werr
			})
		},
	}
	cmd.Flags().Float64Var(&at, "at", 0, "Offset into the video in seconds")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination image file (default frame-<id>-<at>.jpg)")
	return cmd
}

func newVideosExportCommand(ctx *commandContext) *cobra.Command {
	var start float64
	var end float64

	cmd := &cobra.Command{
		Use:   "export ID",
		Short: "Cut a subclip out of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := ctx.videoCatalog(cmd)
			if err != nil {
				return err
			}
			resp, err := cat.ExportSubclip(cmd.Context(), args[0], start, end)
			if err != nil {
				return err
			}
			exported := resp.File
			return ctx.emit(cmd, exported, func(w io.Writer) error {
				_, werr := fmt.Fprintln(w, renderDetails([][2]string{
					{"File", exported.Filename},
					{"Size", cat.FormatFileSize(exported.Size)},
					{"URL", exported.URL},
				}))
				return werr
			})
		},
	}
	cmd.Flags().Float64Var(&start, "start", 0, "Clip start in seconds from the beginning of the video")
	cmd.Flags().Float64Var(&end, "end", 0, "Clip end in seconds from the beginning of the video")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

type downloadView struct {
	Filename string `json:"filename" yaml:"filename"`
	Path     string `json:"path" yaml:"path"`
	Bytes    int64  `json:"bytes" yaml:"bytes"`
}

func newVideosDownloadCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download FILENAME",
		Short: "Download a video or exported clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := ctx.videoCatalog(cmd)
			if err != nil {
				return err
			}
			filename := args[0]
			target := output
			if target == "" {
				target = textutil.SafeFileName(filepath.Base(filename), "video.mp4")
			}

			if target == "-" {
				_, err := cat.DownloadVideo(cmd.Context(), filename, cmd.OutOrStdout())
				return err
			}

			written, err := fileutil.WriteAtomic(target, 0o644, func(w io.Writer) (int64, error) {
				return cat.DownloadVideo(cmd.Context(), filename, w)
			})
			if err != nil {
				return err
			}

			view := downloadView{Filename: filename, Path: target, Bytes: written}
			return ctx.emit(cmd, view, func(w io.Writer) error {
				_, werr := fmt.Fprintf(w, "Downloaded %s to %s (%s)\n", filename, target, cat.FormatFileSize(written))
				return werr
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file, or - for stdout (default: the file name)")
	return cmd
}

func newVideosDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a video from the recorder",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := ctx.videoCatalog(cmd)
			if err != nil {
				return err
			}
			resp, err := cat.DeleteVideo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return ctx.emit(cmd, resp, func(w io.Writer) error {
				message := resp.Message
				if message == "" {
					message = fmt.Sprintf("Deleted %s", args[0])
				}
				_, werr := fmt.Fprintln(w, message)
				return werr
			})
		},
	}
}
