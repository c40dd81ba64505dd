package device

import (
	"context"
	"fmt"
)

// eventLeakInterval is the leak sensor's heartbeat; it carries no state.
const eventLeakInterval = "LeakSensor.setInterval"

// LeakState is the interpreted state of a leak sensor.
type LeakState int

// Leak states.
const (
	LeakUnknown LeakState = iota
	LeakDry
	LeakFull
)

// String returns the name published to the local broker.
func (s LeakState) String() string {
	switch s {
	case LeakDry:
		return "LeakEvent.DRY"
	case LeakFull:
		return "LeakEvent.FULL"
	default:
		return "LeakEvent.UNKNOWN"
	}
}

var leakStates = map[string]LeakState{
	"dry":  LeakDry,
	"full": LeakFull,
}

// Leak is a YoLink water leak sensor.
type Leak struct {
	base
}

// State interprets the latest event.
func (l *Leak) State() LeakState {
	raw, ok := l.event().State()
	if !ok {
		return LeakUnknown
	}
	return leakStates[raw]
}

// Process discards heartbeats and republishes recognised states.
func (l *Leak) Process(ctx context.Context) error {
	evt := l.event()
	if evt.Event == eventLeakInterval {
		l.logger.Debug("leak sensor interval event, discarded", "device_id", l.ID())
		return nil
	}

	if _, ok := evt.State(); !ok {
		l.logger.Info("state not in leak event data", "device_id", l.ID(), "data", evt.Data)
		return nil
	}

	state := l.State()
	l.logger.Info("leak sensor state", "device_id", l.ID(), "name", l.Name(), "state", state.String())
	if state == LeakUnknown {
		return nil
	}
	return l.publish(ctx, state.String())
}

// Describe implements Device.
func (l *Leak) Describe() string {
	return l.describe() + fmt.Sprintf("Current State: %s\n", l.State())
}
