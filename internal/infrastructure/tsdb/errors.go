package tsdb

import "errors"

// Sentinel errors for time-series database operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, tsdb.ErrWriteFailed) {
//	    // The point was rejected or never reached the server
//	}
var (
	// ErrNotConnected indicates the client has been closed.
	ErrNotConnected = errors.New("tsdb: not connected")

	// ErrInvalidConfig indicates the write endpoint could not be built.
	ErrInvalidConfig = errors.New("tsdb: invalid configuration")

	// ErrWriteFailed indicates a write operation failed.
	ErrWriteFailed = errors.New("tsdb: write failed")
)
