// Package streamapi is the HTTP client for the processing backend's stream
// commands.
package streamapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tinytelemetry/iris/internal/metrics"
	"github.com/tinytelemetry/iris/internal/model"
)

const maxResponseBytes = 8 << 20

// APIError is a non-2xx response or a response missing required fields.
// Message is the server's "error" field when present.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMetrics records command counters and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client implements model.StreamAPI.
type Client struct {
	base    string
	http    *http.Client
	metrics *metrics.Metrics
}

var _ model.StreamAPI = (*Client)(nil)

// New returns a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: model.DefaultCommandTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.New()
	}
	return c
}

// BaseURL returns the API origin.
func (c *Client) BaseURL() string { return c.base }

type startRequest struct {
	URL       string `json:"url"`
	DebugMode bool   `json:"debug_mode"`
}

type startResponse struct {
	StreamID  string `json:"stream_id"`
	Status    string `json:"status"`
	DebugMode bool   `json:"debug_mode"`
}

// StartStream asks the backend to process url and returns the assigned
// stream id.
func (c *Client) StartStream(ctx context.Context, streamURL string, debugMode bool) (string, error) {
	var resp startResponse
	err := c.do(ctx, http.MethodPost, "/api/start_stream", startRequest{URL: streamURL, DebugMode: debugMode}, &resp, "Failed to start stream")
	if err != nil {
		return "", err
	}
	if resp.StreamID == "" {
		return "", &APIError{Status: http.StatusOK, Message: "Failed to start stream"}
	}
	return resp.StreamID, nil
}

// StopStream asks the backend to stop streamID.
func (c *Client) StopStream(ctx context.Context, streamID string) error {
	return c.do(ctx, http.MethodPost, "/api/stop_stream/"+url.PathEscape(streamID), nil, nil, "Failed to stop stream")
}

// StreamStatus returns the backend's view of one stream.
func (c *Client) StreamStatus(ctx context.Context, streamID string) (model.StreamInfo, error) {
	var info model.StreamInfo
	err := c.do(ctx, http.MethodGet, "/api/stream_status/"+url.PathEscape(streamID), nil, &info, "Failed to get stream status")
	if err != nil {
		return model.StreamInfo{}, err
	}
	if info.StreamID == "" {
		info.StreamID = streamID
	}
	return info, nil
}

// ActiveStreams lists every stream the backend knows about, keyed by id.
func (c *Client) ActiveStreams(ctx context.Context) (map[string]model.StreamInfo, error) {
	var resp struct {
		Streams map[string]model.StreamInfo `json:"streams"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/active_streams", nil, &resp, "Failed to list streams"); err != nil {
		return nil, err
	}
	for id, info := range resp.Streams {
		if info.StreamID == "" {
			info.StreamID = id
			resp.Streams[id] = info
		}
	}
	return resp.Streams, nil
}

// StreamLogs returns the backend's retained entries for streamID.
func (c *Client) StreamLogs(ctx context.Context, streamID string) ([]model.LogEntry, error) {
	var resp struct {
		StreamID string           `json:"stream_id"`
		Logs     []model.LogEntry `json:"logs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/logs/"+url.PathEscape(streamID), nil, &resp, "Failed to fetch logs"); err != nil {
		return nil, err
	}
	return resp.Logs, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, fallback string) (err error) {
	start := time.Now()
	c.metrics.CommandRequests.Add(1)
	defer func() {
		c.metrics.CommandLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			c.metrics.CommandFailures.Add(1)
		}
	}()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("streamapi: encode %s: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("streamapi: %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("streamapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("streamapi: read %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(data, fallback)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("streamapi: decode %s: %w", path, err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} from a failed response.
func errorMessage(data []byte, fallback string) string {
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return body.Error
	}
	return fallback
}
