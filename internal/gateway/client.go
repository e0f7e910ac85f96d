package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"scheinicam/internal/config"
	"scheinicam/internal/logging"
	"scheinicam/internal/services"
)

const (
	component        = "gateway"
	defaultTimeout   = 30 * time.Second
	requestIDHeader  = "X-Request-ID"
	maxErrorBodySize = 64 << 10
)

// HTTPDoer describes the HTTP client used by the gateway.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the recording backend. Every JSON call is bounded by the
// fixed request timeout; static downloads are bounded only by the caller's
// context.
type Client struct {
	base     *url.URL
	http     HTTPDoer
	download HTTPDoer
	logger   *slog.Logger
	newID    func() string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces both the API and download transports.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
			c.download = doer
		}
	}
}

// WithLogger attaches a logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, component)
	}
}

// WithRequestIDFunc overrides X-Request-ID generation.
func WithRequestIDFunc(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// New constructs a gateway client for baseURL. A non-positive timeout falls
// back to 30 seconds.
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("%w: gateway base url is empty", services.ErrConfiguration)
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse gateway base url: %w", services.ErrConfiguration, err)
	}
	base.Path = strings.TrimRight(base.Path, "/")
	base.RawQuery = ""
	base.Fragment = ""

	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		base: base,
		http: &http.Client{Timeout: timeout},
		// Downloads may take longer than the API timeout; the caller's context bounds them.
		download: &http.Client{},
		logger:   logging.NewComponentLogger(nil, component),
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromConfig builds a client from application configuration.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is nil", services.ErrConfiguration)
	}
	return New(cfg.Server.BaseURL, cfg.RequestTimeout(), WithLogger(logger))
}

// BaseURL returns the resolved backend URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Detail string

	// Decoded is true when the body was a JSON object.
	Decoded bool
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.Code, e.Detail)
	}
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.Code)
}

// Is makes StatusError match services.ErrServerDeclined.
func (e *StatusError) Is(target error) bool {
	return target == services.ErrServerDeclined
}

// UserMessage surfaces the server's detail text, or a generic status line.
func (e *StatusError) UserMessage() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("server returned status %d", e.Code)
}

// endpoint resolves an already escaped path against the base URL.
func (c *Client) endpoint(path string, query url.Values) (*url.URL, error) {
	ref, err := url.Parse(c.base.EscapedPath() + path)
	if err != nil {
		return nil, err
	}
	if len(query) > 0 {
		ref.RawQuery = query.Encode()
	}
	return c.base.ResolveReference(ref), nil
}

// doRaw issues a request and returns the open response for 2xx statuses.
// The caller must close the body.
func (c *Client) doRaw(ctx context.Context, doer HTTPDoer, method, path string, query url.Values, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s request: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	target, err := c.endpoint(path, query)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, component, method+" "+path, "build url", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, component, method+" "+path, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = c.newID()
	}
	req.Header.Set(requestIDHeader, requestID)

	logger := logging.WithContext(ctx, c.logger)
	started := time.Now()
	resp, err := doer.Do(req)
	if err != nil {
		logger.Debug("request failed",
			logging.String("method", method),
			logging.String("path", path),
			logging.String(logging.FieldCorrelationID, requestID),
			logging.Error(err),
		)
		return nil, services.Wrap(services.ErrTransport, component, method+" "+path, "request failed", err)
	}
	logger.Debug("request completed",
		logging.String("method", method),
		logging.String("path", path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldCorrelationID, requestID),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		detail, decoded := readDetail(resp.Body)
		return nil, &StatusError{
			Method:  method,
			Path:    path,
			Code:    resp.StatusCode,
			Detail:  detail,
			Decoded: decoded,
		}
	}
	return resp, nil
}

// do issues a JSON request and decodes the response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.doRaw(ctx, c.http, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrTransport, component, method+" "+path, "decode response", err)
	}
	return nil
}

// readDetail extracts FastAPI's {"detail": ...} from an error body. decoded
// reports whether the body was a JSON object at all.
func readDetail(body io.Reader) (detail string, decoded bool) {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBodySize))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return "", false
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", false
	}
	raw, ok := payload["detail"]
	if !ok {
		if msg, ok := payload["message"]; ok {
			raw = msg
		}
	}
	if len(raw) == 0 {
		return "", true
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, true
	}
	// Validation errors arrive as a list of objects; keep them compact.
	return string(raw), true
}

// IsTransport reports whether err is a network, timeout or decode failure.
func IsTransport(err error) bool {
	return errors.Is(err, services.ErrTransport)
}
