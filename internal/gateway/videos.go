package gateway

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"scheinicam/internal/services"
)

func videoPath(id string) string {
	return recordingsPrefix + "/videos/" + url.PathEscape(id)
}

// Videos lists the catalog in backend order.
func (c *Client) Videos(ctx context.Context) ([]Video, error) {
	var videos []Video
	if err := c.do(ctx, http.MethodGet, recordingsPrefix+"/videos", nil, nil, &videos); err != nil {
		return nil, err
	}
	if videos == nil {
		videos = []Video{}
	}
	return videos, nil
}

// Video fetches a single entry including its size.
func (c *Client) Video(ctx context.Context, id string) (Video, error) {
	var video Video
	if err := c.do(ctx, http.MethodGet, videoPath(id), nil, nil, &video); err != nil {
		return Video{}, err
	}
	return video, nil
}

// Frame extracts a still at offset seconds from the video start.
func (c *Client) Frame(ctx context.Context, id string, offset float64) (FrameResponse, error) {
	query := url.Values{}
	query.Set("timestamp", strconv.FormatFloat(offset, 'f', -1, 64))
	var resp FrameResponse
	if err := c.do(ctx, http.MethodGet, videoPath(id)+"/frame", query, nil, &resp); err != nil {
		return FrameResponse{}, err
	}
	return resp, nil
}

// Export cuts a subclip between start and end seconds. The range is not
// validated locally.
func (c *Client) Export(ctx context.Context, id string, start, end float64) (ExportResponse, error) {
	var resp ExportResponse
	body := ExportRequest{StartTime: start, EndTime: end}
	if err := c.do(ctx, http.MethodPost, videoPath(id)+"/export", nil, body, &resp); err != nil {
		return ExportResponse{}, err
	}
	return resp, nil
}

// DeleteVideo removes a recording on the backend.
func (c *Client) DeleteVideo(ctx context.Context, id string) (AckResponse, error) {
	var resp AckResponse
	if err := c.do(ctx, http.MethodDelete, videoPath(id), nil, nil, &resp); err != nil {
		return AckResponse{}, err
	}
	return resp, nil
}

// Download streams /videos/{filename} into w and returns the byte count.
func (c *Client) Download(ctx context.Context, filename string, w io.Writer) (int64, error) {
	path := "/videos/" + url.PathEscape(filename)
	resp, err := c.doRaw(ctx, c.download, http.MethodGet, path, nil, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	written, err := io.Copy(w, resp.Body)
	if err != nil {
		return written, services.Wrap(services.ErrTransport, component, "GET "+path, "stream body", err)
	}
	return written, nil
}

func wrapDecode(method, path string, err error) error {
	return services.Wrap(services.ErrTransport, component, method+" "+path, "decode response", err)
}
