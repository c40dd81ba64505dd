package sink

import (
	"context"
	"fmt"
)

// LineWriter sends one line-protocol point to a time-series backend.
// tsdb.Client (v1) and influxdb.Client (v2) both implement it.
type LineWriter interface {
	WriteLine(ctx context.Context, line string) error
}

// Metrics writes points for one sensor into a fixed measurement and tag set.
type Metrics struct {
	writer      LineWriter
	measurement string
	tagSet      string
}

// NewMetrics binds a backend writer to a measurement and tag set.
func NewMetrics(writer LineWriter, measurement, tagSet string) *Metrics {
	return &Metrics{
		writer:      writer,
		measurement: measurement,
		tagSet:      tagSet,
	}
}

// Write formats fields as a single point and sends it synchronously.
// Backend failures are returned wrapped in ErrWriteFailed and not retried.
func (m *Metrics) Write(ctx context.Context, fields ...Field) error {
	if len(fields) == 0 {
		return ErrNoFields
	}

	line := FormatLine(m.measurement, m.tagSet, fields)
	if err := m.writer.WriteLine(ctx, line); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, m.measurement, err)
	}
	return nil
}

// Measurement returns the measurement name points are written to.
func (m *Metrics) Measurement() string {
	return m.measurement
}
