package tsdb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/yolink-bridge/internal/infrastructure/config"
)

// Default timeouts for TSDB operations.
const (
	defaultWriteTimeout  = 5 * time.Second
	defaultHealthTimeout = 5 * time.Second
)

// Client writes line protocol to an InfluxDB 1.x compatible /write endpoint.
//
// Every write is a single synchronous HTTP POST; there is no batching and
// no retry. A failed point is reported to the caller and is lost.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	writeURL   string
	pingURL    string
	username   string
	password   string
	httpClient *http.Client

	closed bool
	mu     sync.RWMutex
}

// New creates a client for the v1 write endpoint described by cfg.
//
// cfg.URL is the full write endpoint (e.g. "http://influx:8086/write");
// the database is passed as the db query parameter. No request is made
// here; use HealthCheck to probe the server.
//
// Parameters:
//   - cfg: InfluxDB configuration from config.yaml
//
// Returns:
//   - *Client: Client ready for use
//   - error: ErrInvalidConfig if the URL or database is unusable
func New(cfg config.InfluxDBConfig) (*Client, error) {
	if cfg.URL == "" || cfg.Database == "" {
		return nil, fmt.Errorf("%w: url and database are required", ErrInvalidConfig)
	}

	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: bad url %q", ErrInvalidConfig, cfg.URL)
	}

	q := u.Query()
	q.Set("db", cfg.Database)
	u.RawQuery = q.Encode()
	writeURL := u.String()

	ping := *u
	ping.RawQuery = ""
	ping.Path = strings.TrimSuffix(strings.TrimRight(u.Path, "/"), "/write") + "/ping"

	return &Client{
		writeURL: writeURL,
		pingURL:  ping.String(),
		username: cfg.Auth.Username,
		password: cfg.Auth.Password,
		httpClient: &http.Client{
			Timeout: defaultWriteTimeout,
		},
	}, nil
}

// Close releases idle connections. Writes after Close fail with ErrNotConnected.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.httpClient.CloseIdleConnections()
	return nil
}

// HealthCheck probes the server's /ping endpoint.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultHealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pingURL, nil)
	if err != nil {
		return fmt.Errorf("tsdb health check: %w", err)
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tsdb health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tsdb health check: status %d", resp.StatusCode)
	}

	return nil
}

// IsConnected reports whether the client has not been closed.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

func (c *Client) setAuth(req *http.Request) {
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}
