// Package sink holds the bridge's two outputs.
//
// Metrics formats sensor readings as InfluxDB line protocol and hands them
// to a LineWriter (package tsdb for the v1 API, package influxdb for v2).
// Republish forwards device states to the local MQTT broker.
//
// Both are synchronous: the error from the backend is the caller's to log.
// Nothing is buffered or retried.
package sink
