package gateway

import (
	"context"
	"encoding/json"
	"net/http"
)

const recordingsPrefix = "/api/recordings"

// Status fetches the recorder state. An absent current file is returned as nil.
func (c *Client) Status(ctx context.Context) (RecordingStatus, error) {
	var status RecordingStatus
	if err := c.do(ctx, http.MethodGet, recordingsPrefix+"/status", nil, nil, &status); err != nil {
		return RecordingStatus{}, err
	}
	status.CurrentFile = presentOrNil(status.CurrentFile)
	return status, nil
}

// Start asks the backend to begin recording.
func (c *Client) Start(ctx context.Context) (CommandResponse, error) {
	var resp CommandResponse
	if err := c.do(ctx, http.MethodPost, recordingsPrefix+"/start", nil, nil, &resp); err != nil {
		return CommandResponse{}, err
	}
	resp.CurrentFile = presentOrNil(resp.CurrentFile)
	return resp, nil
}

// Stop asks the backend to end the current recording.
func (c *Client) Stop(ctx context.Context) (CommandResponse, error) {
	var resp CommandResponse
	if err := c.do(ctx, http.MethodPost, recordingsPrefix+"/stop", nil, nil, &resp); err != nil {
		return CommandResponse{}, err
	}
	resp.CurrentFile = presentOrNil(resp.CurrentFile)
	return resp, nil
}

// CurrentFile returns the file being written, or nil when idle.
func (c *Client) CurrentFile(ctx context.Context) (*FileRef, error) {
	var ref *FileRef
	if err := c.do(ctx, http.MethodGet, recordingsPrefix+"/current", nil, nil, &ref); err != nil {
		return nil, err
	}
	return presentOrNil(ref), nil
}

// Preview fetches the latest screenshot.
func (c *Client) Preview(ctx context.Context) (PreviewResponse, error) {
	var resp PreviewResponse
	if err := c.do(ctx, http.MethodGet, recordingsPrefix+"/preview", nil, nil, &resp); err != nil {
		return PreviewResponse{}, err
	}
	return resp, nil
}

// NextScheduled returns the upcoming automatic recording. The backend answers
// with a message-only object when nothing is planned and null when it has no
// scheduler; both are passed through.
func (c *Client) NextScheduled(ctx context.Context) (*Schedule, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, recordingsPrefix+"/next-scheduled", nil, nil, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var schedule Schedule
	if err := json.Unmarshal(raw, &schedule); err != nil {
		return nil, wrapDecode(http.MethodGet, recordingsPrefix+"/next-scheduled", err)
	}
	return &schedule, nil
}
