package yolink

import "errors"

// Domain-specific errors for the YoLink cloud API.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAuth is returned when a token exchange fails: transport error,
	// non-200 status, or a response without access_token/expires_in.
	ErrAuth = errors.New("yolink: authentication failed")

	// ErrAPI is returned when a device API call fails or answers with a
	// code other than "000000".
	ErrAPI = errors.New("yolink: api call failed")

	// ErrInvalidEvent is returned when an MQTT payload is not a device report.
	ErrInvalidEvent = errors.New("yolink: invalid event payload")
)
