// Package influxdb provides InfluxDB 2.x connectivity for yolink-bridge.
//
// It wraps the official influxdb-client-go v2 library and is selected with
// influxdb.backend: "v2". The default v1 backend lives in package tsdb.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Backend: "v2",
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "home",
//	    Bucket:  "sensors",
//	}
//
//	client, err := influxdb.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.WriteLine(ctx, "weather,location=home temperature=69.8,humidity=45.5")
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Writes are synchronous through the blocking write API. Failures are
// returned as ErrWriteFailed; nothing is buffered or retried.
package influxdb
