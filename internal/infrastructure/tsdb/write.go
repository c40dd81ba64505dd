package tsdb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// WriteLine posts one line-protocol point and waits for the server.
//
// Only HTTP 204 counts as success. Any other status, or a transport error,
// returns ErrWriteFailed carrying the status and response text. The write
// is not retried.
//
// The request is sent with Content-Type application/json, which existing
// InfluxDB 1.x deployments accept for line protocol bodies.
//
// Example:
//
//	err := client.WriteLine(ctx, "weather,location=home temperature=69.8,humidity=45.5")
func (c *Client) WriteLine(ctx context.Context, line string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.writeURL, strings.NewReader(line))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: HTTP %d: %s", ErrWriteFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}
