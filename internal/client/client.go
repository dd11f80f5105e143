package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"modeswitch/internal/controller"
)

// DefaultEndpoint is the server address used when none is given.
const DefaultEndpoint = "http://localhost:8080"

// DefaultTimeout bounds a single request. A switch waits for the service
// to stop and start, so it is generous.
const DefaultTimeout = 3 * time.Minute

// APIError is returned when the server answers with something other than
// the expected JSON document.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}

// Client is a modeswitch API client.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a client for endpoint, e.g. http://raspberrypi:8080.
func New(endpoint string, timeout time.Duration) (*Client, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint:   strings.TrimSuffix(u.String(), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Endpoint returns the normalized server address.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Status fetches the current status.
func (c *Client) Status(ctx context.Context) (controller.Status, error) {
	var st controller.Status
	err := c.do(ctx, http.MethodGet, "/api/status", &st)
	return st, err
}

// Switch requests a switch to m. A failed switch is reported in the
// result, not as an error.
func (c *Client) Switch(ctx context.Context, m string) (controller.SwitchResult, error) {
	var res controller.SwitchResult
	err := c.do(ctx, http.MethodPost, "/api/switch/"+url.PathEscape(m), &res)
	return res, err
}

// Restart restarts the service without changing mode.
func (c *Client) Restart(ctx context.Context) (controller.RestartResult, error) {
	var res controller.RestartResult
	err := c.do(ctx, http.MethodPost, "/api/restart", &res)
	return res, err
}

// Setup asks the server to capture and synthesize artifacts.
func (c *Client) Setup(ctx context.Context) (controller.SetupResult, error) {
	var res controller.SetupResult
	err := c.do(ctx, http.MethodPost, "/api/setup", &res)
	return res, err
}

// Modes lists the configured modes.
func (c *Client) Modes(ctx context.Context) ([]controller.ModeInfo, error) {
	var modes []controller.ModeInfo
	err := c.do(ctx, http.MethodGet, "/api/modes", &modes)
	return modes, err
}

// do sends a request and decodes a JSON body into out. API handlers always
// answer JSON, so a non-JSON body is treated as an error whatever the code.
func (c *Client) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach modeswitch server at %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
