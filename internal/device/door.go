package device

import (
	"context"
	"fmt"
)

// DoorState is the interpreted state of a door sensor.
type DoorState int

// Door states.
const (
	DoorUnknown DoorState = iota
	DoorOpen
	DoorClose
)

// String returns the name published to the local broker. Downstream
// consumers match on these exact strings.
func (s DoorState) String() string {
	switch s {
	case DoorOpen:
		return "DoorEvent.OPEN"
	case DoorClose:
		return "DoorEvent.CLOSE"
	default:
		return "DoorEvent.UNKNOWN"
	}
}

var doorStates = map[string]DoorState{
	"open":   DoorOpen,
	"closed": DoorClose,
}

// Door is a YoLink door/contact sensor. Recognised states are republished.
type Door struct {
	base
}

// State interprets the latest event.
func (d *Door) State() DoorState {
	raw, ok := d.event().State()
	if !ok {
		return DoorUnknown
	}
	return doorStates[raw]
}

// Process publishes the door state if it is recognised.
func (d *Door) Process(ctx context.Context) error {
	state := d.State()
	if state == DoorUnknown {
		evt := d.event()
		d.logger.Info("unsupported door event", "device_id", d.ID(), "event", evt.Event, "data", evt.Data)
		return nil
	}

	d.logger.Debug("door event", "device_id", d.ID(), "state", state.String())
	return d.publish(ctx, state.String())
}

// Describe implements Device.
func (d *Door) Describe() string {
	raw, _ := d.event().State()
	return d.describe() + fmt.Sprintf("State: %s (%s)\n", d.State(), raw)
}
