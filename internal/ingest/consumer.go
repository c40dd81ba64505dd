package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nerrad567/yolink-bridge/internal/device"
	"github.com/nerrad567/yolink-bridge/internal/yolink"
)

// DefaultDrainTimeout bounds how long Run keeps processing queued events
// after its context is cancelled.
const DefaultDrainTimeout = 5 * time.Second

// DeviceLookup resolves a device id. *device.Registry implements it.
type DeviceLookup interface {
	Get(id string) (device.Device, bool)
}

// ConsumerStats is a snapshot of the consumer's counters.
type ConsumerStats struct {
	Processed uint64
	Failed    uint64
	Unknown   uint64
}

// Consumer is the single worker that dequeues events and dispatches them
// to devices. It is the only caller of Device.Refresh and Device.Process.
//
// Errors and panics from device processing stop at this boundary; the loop
// keeps running until its context is cancelled.
type Consumer struct {
	queue        *Queue
	devices      DeviceLookup
	logger       Logger
	drainTimeout time.Duration

	processed atomic.Uint64
	failed    atomic.Uint64
	unknown   atomic.Uint64
}

// NewConsumer creates a consumer reading from queue.
func NewConsumer(queue *Queue, devices DeviceLookup, logger Logger) *Consumer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Consumer{
		queue:        queue,
		devices:      devices,
		logger:       logger,
		drainTimeout: DefaultDrainTimeout,
	}
}

// SetDrainTimeout overrides DefaultDrainTimeout.
func (c *Consumer) SetDrainTimeout(d time.Duration) {
	c.drainTimeout = d
}

// Run processes events until ctx is cancelled, then drains what is left in
// the queue (bounded by the drain timeout) and returns nil.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started")
	for {
		evt, err := c.queue.Pop(ctx)
		if err != nil {
			c.drain(ctx)
			return nil
		}
		_ = c.Dispatch(ctx, evt)
	}
}

// drain processes queued events after shutdown has been requested.
func (c *Consumer) drain(parent context.Context) {
	if c.queue.Len() == 0 {
		c.logger.Info("consumer stopped")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), c.drainTimeout)
	defer cancel()

	drained := 0
	for ctx.Err() == nil {
		evt, ok := c.queue.TryPop()
		if !ok {
			break
		}
		_ = c.Dispatch(ctx, evt)
		drained++
	}

	c.logger.Info("consumer stopped", "drained", drained, "abandoned", c.queue.Len())
}

// Dispatch delivers one event to its device.
//
// Returns ErrUnknownDevice for unregistered ids and ErrDeviceProcessing
// when Process fails or panics. Both are logged and counted here; callers
// may ignore the result.
func (c *Consumer) Dispatch(ctx context.Context, evt yolink.Event) error {
	dev, ok := c.devices.Get(evt.DeviceID)
	if !ok {
		c.unknown.Add(1)
		c.logger.Debug("event for unknown device discarded", "device_id", evt.DeviceID, "event", evt.Event)
		return fmt.Errorf("%w: %s", ErrUnknownDevice, evt.DeviceID)
	}

	if err := c.process(ctx, dev, evt); err != nil {
		c.failed.Add(1)
		c.logger.Error("device processing failed",
			"device_id", evt.DeviceID,
			"event", evt.Event,
			"error", err)
		return err
	}

	c.processed.Add(1)
	return nil
}

// process runs Refresh and Process with panic recovery.
func (c *Consumer) process(ctx context.Context, dev device.Device, evt yolink.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrDeviceProcessing, r)
		}
	}()

	dev.Refresh(evt)
	if err := dev.Process(ctx); err != nil {
		if errors.Is(err, ErrDeviceProcessing) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrDeviceProcessing, err)
	}
	return nil
}

// Stats returns a snapshot of the consumer's counters.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Processed: c.processed.Load(),
		Failed:    c.failed.Load(),
		Unknown:   c.unknown.Load(),
	}
}
