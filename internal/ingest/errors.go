package ingest

import "errors"

// Domain errors for the ingest pipeline.
var (
	// ErrQueueFull is returned by Push under the drop policy when the
	// queue is at capacity. The event has been discarded and counted.
	ErrQueueFull = errors.New("ingest: queue full")

	// ErrUnknownDevice is returned when an event names a device the
	// registry does not know. The event is discarded, never retried.
	ErrUnknownDevice = errors.New("ingest: unknown device")

	// ErrDeviceProcessing wraps a failure or panic inside Device.Process.
	ErrDeviceProcessing = errors.New("ingest: device processing failed")

	// ErrMalformedEvent is returned for payloads that are not valid events.
	ErrMalformedEvent = errors.New("ingest: malformed event")

	// ErrRestartRequired is returned by Subscriber.Run when the vendor
	// connection ended and the process must be restarted.
	ErrRestartRequired = errors.New("ingest: subscriber restart required")
)
