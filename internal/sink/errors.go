package sink

import "errors"

// Sentinel errors for sink operations.
var (
	// ErrNoFields is returned when a metrics point would carry no fields.
	ErrNoFields = errors.New("sink: point has no fields")

	// ErrWriteFailed is returned when the metrics backend rejects a point.
	ErrWriteFailed = errors.New("sink: metrics write failed")

	// ErrPublishFailed is returned when the local broker rejects a message.
	ErrPublishFailed = errors.New("sink: republish failed")
)
