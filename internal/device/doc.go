// Package device models the YoLink sensors the bridge understands.
//
// Each supported raw type maps to one variant:
//
//	DoorSensor      -> Door         republishes DoorEvent.OPEN / DoorEvent.CLOSE
//	THSensor        -> Temperature  writes temperature (°F) and humidity
//	LeakSensor      -> Leak         republishes LeakEvent.DRY / LeakEvent.FULL
//	VibrationSensor -> Vibration    log only
//
// Hub and Siren records are filtered out when the Registry is built.
//
// A Device holds only its latest event. Refresh replaces it, Process acts
// on it. Sinks are attached once at startup; a device without a sink
// processes events as a successful no-op.
//
// The SQLiteRepository caches the device catalog so the bridge can start
// from the last known device list when the YoLink HTTP API is down.
package device
