// Package api implements the read-only HTTP status API for yolink-bridge.
//
// This package provides:
//   - GET /api/v1/health: vendor connection state and sink health checks
//   - GET /api/v1/metrics: pipeline counters and Go runtime statistics
//   - GET /api/v1/devices: the device registry with each device's last event
//   - GET /api/v1/devices/{id}: one device
//   - Middleware stack (request ID, logging, recovery)
//
// The API is disabled by default and binds to localhost when enabled. It
// never changes bridge state.
//
// Usage:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
