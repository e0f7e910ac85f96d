package catalog

import (
	"context"
	"io"
	"log/slog"
	"slices"

	"golang.org/x/text/language"

	"scheinicam/internal/gateway"
	"scheinicam/internal/logging"
	"scheinicam/internal/reactive"
	"scheinicam/internal/services"
)

const component = "catalog"

// State is an immutable snapshot of the catalog.
type State struct {
	Videos         []gateway.Video       `json:"videos" yaml:"videos"`
	Selected       *gateway.Video        `json:"selected,omitempty" yaml:"selected,omitempty"`
	PreviewFrame   string                `json:"-" yaml:"-"`
	ExportedFile   *gateway.ExportedFile `json:"exported_file,omitempty" yaml:"exported_file,omitempty"`
	Loading        bool                  `json:"loading" yaml:"loading"`
	LoadingPreview bool                  `json:"loading_preview" yaml:"loading_preview"`
	Exporting      bool                  `json:"exporting" yaml:"exporting"`
	Downloading    bool                  `json:"downloading" yaml:"downloading"`
	LastError      string                `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

// FrameResult reports what happened to a frame request.
type FrameResult struct {
	Response gateway.FrameResponse
	// Applied is true when the frame replaced the preview.
	Applied bool
	// Stale is true when a newer request or selection superseded this one.
	Stale bool
}

// Gateway is the subset of backend calls the catalog needs.
type Gateway interface {
	Videos(ctx context.Context) ([]gateway.Video, error)
	Video(ctx context.Context, id string) (gateway.Video, error)
	Frame(ctx context.Context, id string, offset float64) (gateway.FrameResponse, error)
	Export(ctx context.Context, id string, start, end float64) (gateway.ExportResponse, error)
	DeleteVideo(ctx context.Context, id string) (gateway.AckResponse, error)
	Download(ctx context.Context, filename string, w io.Writer) (int64, error)
}

// Option customizes a Catalog.
type Option func(*Catalog)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = logging.NewComponentLogger(logger, component)
	}
}

// WithLocale sets the locale used by DisplayName and FormatFileSize.
func WithLocale(tag language.Tag) Option {
	return func(c *Catalog) {
		c.locale = tag
	}
}

type catalogState struct {
	State
	frameSeq uint64
}

// Catalog is the video archive state container.
type Catalog struct {
	gw     Gateway
	logger *slog.Logger
	locale language.Tag
	state  *reactive.Value[catalogState]
}

// New builds an empty catalog.
func New(gw Gateway, opts ...Option) *Catalog {
	c := &Catalog{
		gw:     gw,
		logger: logging.NewComponentLogger(nil, component),
		locale: language.German,
		state:  reactive.New(catalogState{State: State{Videos: []gateway.Video{}}}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current snapshot.
func (c *Catalog) State() State {
	return c.state.Load().State
}

// Subscribe registers fn for state changes.
func (c *Catalog) Subscribe(fn func(State)) func() {
	return c.state.Subscribe(func(st catalogState) {
		fn(st.State)
	})
}

// Locale reports the formatting locale.
func (c *Catalog) Locale() language.Tag {
	return c.locale
}

func (c *Catalog) apply(fn func(*State)) {
	c.state.Update(func(st *catalogState) bool {
		fn(&st.State)
		return true
	})
}

func (c *Catalog) fail(ctx context.Context, operation string, err error, reset func(*State)) error {
	message := services.UserMessage(err)
	c.apply(func(st *State) {
		if reset != nil {
			reset(st)
		}
		st.LastError = message
	})
	logging.WithContext(ctx, c.logger).Warn("catalog operation failed",
		logging.Error(err),
		logging.String(logging.FieldEventType, operation+"_failed"),
		logging.String(logging.FieldErrorHint, "check the backend connection"),
	)
	return err
}

func stopLoading(st *State) { st.Loading = false }

// FetchVideos replaces the list with the backend's.
func (c *Catalog) FetchVideos(ctx context.Context) ([]gateway.Video, error) {
	ctx = services.WithOperation(ctx, "fetch_videos")
	c.apply(func(st *State) {
		st.Loading = true
		st.LastError = ""
	})
	videos, err := c.gw.Videos(ctx)
	if err != nil {
		return nil, c.fail(ctx, "fetch_videos", err, stopLoading)
	}
	c.apply(func(st *State) {
		st.Videos = slices.Clone(videos)
		st.Loading = false
	})
	c.logger.Debug("videos fetched", logging.Int("count", len(videos)))
	return videos, nil
}

// SelectVideo loads the detail entry for id and makes it the selection. Any
// frame request issued before the selection is discarded on arrival.
func (c *Catalog) SelectVideo(ctx context.Context, id string) (gateway.Video, error) {
	ctx = services.WithOperation(ctx, "select_video")
	c.state.Update(func(st *catalogState) bool {
		st.frameSeq++
		st.LoadingPreview = false
		st.Loading = true
		st.LastError = ""
		return true
	})
	video, err := c.gw.Video(ctx, id)
	if err != nil {
		return gateway.Video{}, c.fail(ctx, "select_video", err, stopLoading)
	}
	c.apply(func(st *State) {
		selected := video
		st.Selected = &selected
		st.Loading = false
	})
	return video, nil
}

// FetchFrame requests the still at offset seconds into video id. Only the
// most recently issued request may change the state; earlier ones resolve
// with Stale set and no error, whatever their outcome.
func (c *Catalog) FetchFrame(ctx context.Context, id string, offset float64) (FrameResult, error) {
	ctx = services.WithOperation(ctx, "fetch_frame")
	var seq uint64
	c.state.Update(func(st *catalogState) bool {
		st.frameSeq++
		seq = st.frameSeq
		st.LoadingPreview = true
		return true
	})

	resp, err := c.gw.Frame(ctx, id, offset)

	result := FrameResult{Response: resp}
	message := ""
	if err != nil {
		message = services.UserMessage(err)
	}
	c.state.Update(func(st *catalogState) bool {
		if st.frameSeq != seq {
			result.Stale = true
			return false
		}
		st.LoadingPreview = false
		if err != nil {
			st.LastError = message
			return true
		}
		if resp.Success && resp.Frame != "" {
			st.PreviewFrame = resp.Frame
			result.Applied = true
		}
		return true
	})

	if result.Stale {
		c.logger.Debug("discarded stale frame",
			logging.String("video_id", id),
			logging.Any("offset", offset),
			logging.Uint64("sequence", seq),
		)
		return result, nil
	}
	if err != nil {
		logging.WithContext(ctx, c.logger).Warn("frame request failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "fetch_frame_failed"),
			logging.String(logging.FieldErrorHint, "check that the video still exists"),
		)
		return result, err
	}
	return result, nil
}

// ExportSubclip cuts [start, end] seconds out of video id. The bounds are
// passed through unchecked; the backend decides whether they make sense.
func (c *Catalog) ExportSubclip(ctx context.Context, id string, start, end float64) (gateway.ExportResponse, error) {
	ctx = services.WithOperation(ctx, "export_subclip")
	c.apply(func(st *State) {
		st.Exporting = true
		st.LastError = ""
	})
	resp, err := c.gw.Export(ctx, id, start, end)
	stopExporting := func(st *State) { st.Exporting = false }
	if err != nil {
		return gateway.ExportResponse{}, c.fail(ctx, "export_subclip", err, stopExporting)
	}
	if !resp.Success || resp.File == nil {
		return resp, c.fail(ctx, "export_subclip", services.Declined(component, "export", ""), stopExporting)
	}
	c.apply(func(st *State) {
		exported := *resp.File
		st.ExportedFile = &exported
		st.Exporting = false
	})
	logging.WithContext(ctx, c.logger).Info("subclip exported",
		logging.String(logging.FieldEventType, "subclip_exported"),
		logging.String("filename", resp.File.Filename),
		logging.Int64("size", resp.File.Size),
	)
	return resp, nil
}

// ClearExportedFile empties the export slot.
func (c *Catalog) ClearExportedFile() {
	c.apply(func(st *State) {
		st.ExportedFile = nil
	})
}

// DownloadVideo streams filename into w. Only the Downloading flag and the
// error field change.
func (c *Catalog) DownloadVideo(ctx context.Context, filename string, w io.Writer) (int64, error) {
	ctx = services.WithOperation(ctx, "download_video")
	c.apply(func(st *State) {
		st.Downloading = true
		st.LastError = ""
	})
	written, err := c.gw.Download(ctx, filename, w)
	stopDownloading := func(st *State) { st.Downloading = false }
	if err != nil {
		return written, c.fail(ctx, "download_video", err, stopDownloading)
	}
	c.apply(stopDownloading)
	logging.WithContext(ctx, c.logger).Info("video downloaded",
		logging.String(logging.FieldEventType, "video_downloaded"),
		logging.String("filename", filename),
		logging.Int64("bytes", written),
	)
	return written, nil
}

// DeleteVideo removes id on the backend and then drops the matching entry
// locally. The list is not refetched.
func (c *Catalog) DeleteVideo(ctx context.Context, id string) (gateway.AckResponse, error) {
	ctx = services.WithOperation(ctx, "delete_video")
	c.apply(func(st *State) {
		st.Loading = true
		st.LastError = ""
	})
	resp, err := c.gw.DeleteVideo(ctx, id)
	if err != nil {
		return gateway.AckResponse{}, c.fail(ctx, "delete_video", err, stopLoading)
	}
	if !resp.Success {
		return resp, c.fail(ctx, "delete_video", services.Declined(component, "delete", resp.Message), stopLoading)
	}
	c.apply(func(st *State) {
		st.Videos = slices.DeleteFunc(slices.Clone(st.Videos), func(v gateway.Video) bool {
			return v.ID == id
		})
		st.Loading = false
	})
	logging.WithContext(ctx, c.logger).Info("video deleted",
		logging.String(logging.FieldEventType, "video_deleted"),
		logging.String("video_id", id),
	)
	return resp, nil
}
