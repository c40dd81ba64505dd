package device

import (
	"context"
	"fmt"
	"math"

	"github.com/nerrad567/yolink-bridge/internal/sink"
)

// Temperature is a YoLink temperature/humidity sensor. Readings are written
// to the metrics sink when one is attached.
type Temperature struct {
	base
}

// Fahrenheit returns the reported temperature converted from Celsius,
// rounded to two decimals.
func (t *Temperature) Fahrenheit() (float64, bool) {
	c, ok := t.event().Float("temperature")
	if !ok {
		return 0, false
	}
	return round2(c*1.8 + 32), true
}

// Humidity returns the reported relative humidity rounded to two decimals.
func (t *Temperature) Humidity() (float64, bool) {
	h, ok := t.event().Float("humidity")
	if !ok {
		return 0, false
	}
	return round2(h), true
}

// Process writes one point with temperature (°F) and humidity.
func (t *Temperature) Process(ctx context.Context) error {
	temp, okT := t.Fahrenheit()
	humidity, okH := t.Humidity()
	if !okT || !okH {
		evt := t.event()
		t.logger.Info("temperature event missing readings", "device_id", t.ID(), "event", evt.Event, "data", evt.Data)
		return nil
	}

	t.logger.Debug("temperature reading", "device_id", t.ID(), "temperature_f", temp, "humidity", humidity)

	if t.metrics == nil {
		return nil
	}
	if err := t.metrics.Write(ctx, sink.F("temperature", temp), sink.F("humidity", humidity)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSinkWrite, t.ID(), err)
	}
	return nil
}

// Describe implements Device.
func (t *Temperature) Describe() string {
	out := t.describe()
	if temp, ok := t.Fahrenheit(); ok {
		out += fmt.Sprintf("Temperature (F): %.2f\n", temp)
	}
	if h, ok := t.Humidity(); ok {
		out += fmt.Sprintf("Humidity: %.2f\n", h)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
