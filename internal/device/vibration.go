package device

import (
	"context"
	"fmt"
)

// Vibration is a YoLink vibration sensor. It has no sink; readings are
// logged for diagnostics only.
type Vibration struct {
	base
}

// Vibrating reports whether the latest event is an alert.
func (v *Vibration) Vibrating() bool {
	raw, ok := v.event().State()
	return ok && raw == "alert"
}

// Process logs the vibration state.
func (v *Vibration) Process(_ context.Context) error {
	evt := v.event()
	if _, ok := evt.State(); !ok {
		v.logger.Info("state not in vibration event data", "device_id", v.ID(), "data", evt.Data)
		return nil
	}

	v.logger.Info("vibration sensor state", "device_id", v.ID(), "name", v.Name(), "vibrating", v.Vibrating())
	return nil
}

// Describe implements Device.
func (v *Vibration) Describe() string {
	state := "VibrateEvent.NO_VIBRATE"
	if v.Vibrating() {
		state = "VibrateEvent.VIBRATE"
	}
	return v.describe() + fmt.Sprintf("Current State: %s\n", state)
}
