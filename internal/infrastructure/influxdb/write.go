package influxdb

import (
	"context"
	"fmt"
)

// WriteLine writes one line-protocol record to the configured bucket.
//
// The call blocks until the server answers. A rejected or undeliverable
// record is returned as ErrWriteFailed and is not retried.
//
// Example:
//
//	err := client.WriteLine(ctx, "weather,location=home temperature=69.8,humidity=45.5")
func (c *Client) WriteLine(ctx context.Context, line string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := c.writeAPI.WriteRecord(ctx, line); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	return nil
}
