package gateway

import (
	"context"
	"net/http"
	"net/url"
)

const adminPrefix = "/api/admin"

// AdminStatus fetches recorder, file and audio monitor state.
func (c *Client) AdminStatus(ctx context.Context) (AdminStatus, error) {
	var status AdminStatus
	if err := c.do(ctx, http.MethodGet, adminPrefix+"/status", nil, nil, &status); err != nil {
		return AdminStatus{}, err
	}
	return status, nil
}

// SetMute mutes or unmutes the video source.
func (c *Client) SetMute(ctx context.Context, muted bool) (MuteResponse, error) {
	var resp MuteResponse
	if err := c.do(ctx, http.MethodPost, adminPrefix+"/mute", nil, MuteRequest{Muted: muted}, &resp); err != nil {
		return MuteResponse{}, err
	}
	return resp, nil
}

// ReloadCamera reinitializes the camera source.
func (c *Client) ReloadCamera(ctx context.Context) (AckResponse, error) {
	return c.ack(ctx, http.MethodPost, adminPrefix+"/camera/reload")
}

// SetLogo shows or hides the overlay logo.
func (c *Client) SetLogo(ctx context.Context, visible bool) (LogoResponse, error) {
	var resp LogoResponse
	if err := c.do(ctx, http.MethodPost, adminPrefix+"/logo", nil, LogoRequest{Visible: visible}, &resp); err != nil {
		return LogoResponse{}, err
	}
	return resp, nil
}

// Shutdown powers off the recording host.
func (c *Client) Shutdown(ctx context.Context) (AckResponse, error) {
	return c.ack(ctx, http.MethodPost, adminPrefix+"/shutdown")
}

// Restart reboots the recording host.
func (c *Client) Restart(ctx context.Context) (AckResponse, error) {
	return c.ack(ctx, http.MethodPost, adminPrefix+"/restart")
}

// CheckAudio probes the current audio level.
func (c *Client) CheckAudio(ctx context.Context) (AudioCheck, error) {
	var resp AudioCheck
	if err := c.do(ctx, http.MethodGet, adminPrefix+"/audio/check", nil, nil, &resp); err != nil {
		return AudioCheck{}, err
	}
	return resp, nil
}

// AudioMonitor fetches the automatic audio watchdog status.
func (c *Client) AudioMonitor(ctx context.Context) (AudioMonitorStatus, error) {
	var resp AudioMonitorStatus
	if err := c.do(ctx, http.MethodGet, adminPrefix+"/audio/monitor", nil, nil, &resp); err != nil {
		return AudioMonitorStatus{}, err
	}
	return resp, nil
}

// Logs lists backend log files, newest first.
func (c *Client) Logs(ctx context.Context) ([]LogFile, error) {
	var resp LogsResponse
	if err := c.do(ctx, http.MethodGet, adminPrefix+"/logs", nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Logs == nil {
		resp.Logs = []LogFile{}
	}
	return resp.Logs, nil
}

// LogFile fetches the content of one backend log file.
func (c *Client) LogFile(ctx context.Context, filename string) (LogContent, error) {
	var resp LogContent
	if err := c.do(ctx, http.MethodGet, adminPrefix+"/logs/"+url.PathEscape(filename), nil, nil, &resp); err != nil {
		return LogContent{}, err
	}
	return resp, nil
}

// DeleteLogs removes all backend log files.
func (c *Client) DeleteLogs(ctx context.Context) (DeleteLogsResponse, error) {
	var resp DeleteLogsResponse
	if err := c.do(ctx, http.MethodDelete, adminPrefix+"/logs", nil, nil, &resp); err != nil {
		return DeleteLogsResponse{}, err
	}
	return resp, nil
}

func (c *Client) ack(ctx context.Context, method, path string) (AckResponse, error) {
	var resp AckResponse
	if err := c.do(ctx, method, path, nil, nil, &resp); err != nil {
		return AckResponse{}, err
	}
	return resp, nil
}
