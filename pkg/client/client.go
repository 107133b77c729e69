// Package client talks to a running launcher over its HTTP bridge. It is what
// the CLI subcommands and external front-ends use; it can only send the four
// bridge commands and read status, never touch processes directly.
package client

import (
	"bufio"
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

	"github.com/vigil-labs/launcher/pkg/explorer"
)

// Client provides HTTP client functionality to communicate with the launcher.
type Client struct {
	baseURL string
	client  *http.Client
	stream  *http.Client // no overall timeout, used for /events
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger // Optional logger for client operations
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:8765/ipc",
		Timeout: 10 * time.Second,
	}
}

// New creates a new launcher client.
func New(config Config) *Client {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
		stream:  &http.Client{},
	}
}

// IsReachable checks if the launcher is running and reachable.
func (c *Client) IsReachable(ctx context.Context) bool {
	_, err := c.Status(ctx)
	if err != nil {
		c.logger.Debug("Launcher unreachable", "error", err)
		return false
	}
	return true
}

// Send queues one of start-node, stop-node, open-wallet or install-update.
// It returns once the launcher accepted the command; the outcome arrives as
// status events.
func (c *Client) Send(ctx context.Context, command string) error {
	c.logger.Debug("Sending command", "command", command)
	return c.doRequest(ctx, http.MethodPost, c.baseURL+"/commands/"+url.PathEscape(command), nil, nil)
}

// Status returns the last message of every channel.
func (c *Client) Status(ctx context.Context) (map[string]string, error) {
	var out StatusResponse
	if err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/status", nil, &out); err != nil {
		return nil, err
	}
	return out.Channels, nil
}

// Watch streams status events of channels (all when empty) to fn until ctx
// is done or the launcher closes the stream.
func (c *Client) Watch(ctx context.Context, channels []string, fn func(StatusEvent)) error {
	q := url.Values{}
	for _, ch := range channels {
		q.Add("channel", ch)
	}
	u := c.baseURL + "/events"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.stream.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := c.handleErrorResponse(resp); err != nil {
		return err
	}

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		data, ok := strings.CutPrefix(sc.Text(), "data:")
		if !ok {
			continue
		}
		var ev StatusEvent
		if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &ev); err != nil {
			c.logger.Warn("Skipping malformed event", "data", data, "error", err)
			continue
		}
		fn(ev)
	}
	if err := sc.Err(); err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return err
	}
	return nil
}

// StakingInfo returns the proxied staking snapshot; nil when the backend failed.
func (c *Client) StakingInfo(ctx context.Context) (*explorer.StakingInfo, error) {
	var out *explorer.StakingInfo
	if err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/explorer/stakinginfo", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MiningInfo returns the proxied mining document; nil when the backend failed.
func (c *Client) MiningInfo(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/explorer/mininginfo", nil, &out); err != nil {
		return nil, err
	}
	if string(out) == "null" {
		return nil, nil
	}
	return out, nil
}

// Faucet requests test coins for address. Throttled or rejected requests are
// returned as a FaucetResult, not an error.
func (c *Client) Faucet(ctx context.Context, address string) (explorer.FaucetResult, error) {
	data, err := json.Marshal(explorer.FaucetRequest{Address: address})
	if err != nil {
		return explorer.FaucetResult{}, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/explorer/faucet", bytes.NewReader(data))
	if err != nil {
		return explorer.FaucetResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return explorer.FaucetResult{}, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var res explorer.FaucetResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return explorer.FaucetResult{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return res, nil
}

// doRequest performs HTTP request with common error handling
func (c *Client) doRequest(ctx context.Context, method, url string, body []byte, out any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("HTTP request failed", "error", err, "url", url)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.handleErrorResponse(resp); err != nil {
		return err
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// handleErrorResponse handles HTTP error responses
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var errorResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil || errorResp.Error == "" {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	c.logger.Debug("API request failed", "error", errorResp.Error, "status", resp.StatusCode)
	return fmt.Errorf("API error: %s", errorResp.Error)
}
