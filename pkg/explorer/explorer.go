// Package explorer is the launcher's facade over the block explorer backend.
//
// Nothing in this package returns an error: failed calls are logged and
// reported as nil or as a FaucetResult with Success=false, so a flaky backend
// can never take the presentation layer down.
package explorer

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// maxBody bounds every backend response.
const maxBody = 1 << 20

// Client calls the explorer backend.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	observe func(endpoint string, ok bool)
}

// Config holds client configuration.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	Logger     *slog.Logger
	HTTPClient *http.Client // overrides Timeout and TLS when set
	TLS        *TLSConfig
	// Observe is called once per request with its outcome.
	Observe func(endpoint string, ok bool)
}

// TLSConfig configures HTTPS to the backend.
type TLSConfig struct {
	CACert     string // CA certificate file path
	ServerName string
	SkipVerify bool
}

// DefaultConfig returns the configuration for a backend on localhost.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:7777",
		Timeout: 10 * time.Second,
	}
}

// New creates a facade client.
func New(config Config) *Client {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	hc := config.HTTPClient
	if hc == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if config.TLS != nil {
			tlsConfig, err := setupClientTLS(config.TLS)
			if err != nil {
				config.Logger.Error("TLS setup failed", "error", err)
			} else {
				transport.TLSClientConfig = tlsConfig
			}
		}
		hc = &http.Client{Timeout: config.Timeout, Transport: transport}
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		client:  hc,
		logger:  config.Logger,
		observe: config.Observe,
	}
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchJSON GETs endpoint and decodes the body into out. It returns false
// (and logs) on any network, HTTP status or decoding failure.
func (c *Client) FetchJSON(ctx context.Context, endpoint string, out any) bool {
	err := c.do(ctx, http.MethodGet, endpoint, nil, out)
	c.record(endpoint, err == nil)
	if err != nil {
		c.logger.Error("Error fetching data", "endpoint", endpoint, "error", err)
		return false
	}
	return true
}

// GetStakingInfo returns the current staking snapshot, or nil when the
// backend call failed or the response lacks a field.
func (c *Client) GetStakingInfo(ctx context.Context) *StakingInfo {
	var raw backendStakingInfo
	if !c.FetchJSON(ctx, PathStakingInfo, &raw) {
		return nil
	}
	if raw.TotalStaked == nil || raw.SecurityScore == nil || raw.ProjectedROI == nil {
		c.logger.Error("Malformed staking info", "endpoint", PathStakingInfo)
		return nil
	}
	return &StakingInfo{
		TotalStaked:   *raw.TotalStaked,
		SecurityScore: *raw.SecurityScore,
		ProjectedROI:  *raw.ProjectedROI,
	}
}

// GetMiningInfo returns the backend's mining info document, or nil.
func (c *Client) GetMiningInfo(ctx context.Context) json.RawMessage {
	return c.fetchRaw(ctx, PathMiningInfo)
}

// GetTicketPoolValue returns the backend's ticket pool value document, or nil.
func (c *Client) GetTicketPoolValue(ctx context.Context) json.RawMessage {
	return c.fetchRaw(ctx, PathTicketPoolValue)
}

func (c *Client) fetchRaw(ctx context.Context, endpoint string) json.RawMessage {
	var raw json.RawMessage
	if !c.FetchJSON(ctx, endpoint, &raw) {
		return nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}

// RequestFaucet asks the faucet to fund address. It never fails: any error
// becomes Success=false with the reason in Message.
func (c *Client) RequestFaucet(ctx context.Context, address string) FaucetResult {
	body, err := json.Marshal(FaucetRequest{Address: address})
	if err != nil {
		return FaucetResult{Success: false, Message: err.Error()}
	}
	var res FaucetResult
	err = c.do(ctx, http.MethodPost, PathFaucet, body, &res)
	c.record(PathFaucet, err == nil)
	if err != nil {
		c.logger.Error("Error requesting VGL from faucet", "error", err)
		return FaucetResult{Success: false, Message: err.Error()}
	}
	return res
}

func (c *Client) record(endpoint string, ok bool) {
	if c.observe != nil {
		c.observe(endpoint, ok)
	}
}

// do performs one request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return fmt.Errorf("HTTP error! status: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func setupClientTLS(cfg *TLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		ServerName: cfg.ServerName,
		// #nosec G402 -- opt-in for local test backends
		InsecureSkipVerify: cfg.SkipVerify,
	}
	if cfg.CACert != "" {
		caCert, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}
