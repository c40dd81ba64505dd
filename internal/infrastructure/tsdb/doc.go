// Package tsdb writes sensor readings to an InfluxDB 1.x write endpoint.
//
// It posts InfluxDB line protocol over plain HTTP with Basic auth. This is
// the bridge's default metrics backend; the v2 API is served by package
// influxdb instead.
//
// # Usage
//
//	client, err := tsdb.New(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.WriteLine(ctx, "weather,location=home temperature=69.8,humidity=45.5")
//
// # Error Handling
//
// Writes are synchronous. Anything other than HTTP 204 is ErrWriteFailed;
// the caller decides whether to log and move on. Nothing is buffered or
// retried.
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package tsdb
