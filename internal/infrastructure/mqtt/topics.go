package mqtt

import "fmt"

// TopicPrefix is the root of every topic the bridge publishes to.
const TopicPrefix = "yolink"

// Topics provides builders for the bridge's local MQTT topics.
// Using these helpers keeps topic naming consistent with downstream consumers.
//
//	topics := mqtt.Topics{}
//	topic := topics.DeviceReport("DoorSensor", "d88b4c01000a1b2c")
//	// Returns: "yolink/DoorSensor/d88b4c01000a1b2c/report"
type Topics struct{}

// DeviceReport returns the republish topic for one device.
//
// Example: yolink/LeakSensor/d88b4c01000a1b2c/report
func (Topics) DeviceReport(rawType, deviceID string) string {
	return fmt.Sprintf("%s/%s/%s/report", TopicPrefix, rawType, deviceID)
}

// BridgeStatus returns the retained bridge status topic.
//
// Example: yolink/bridge/status
func (Topics) BridgeStatus() string {
	return TopicPrefix + "/bridge/status"
}

// AllDeviceReports returns a pattern matching every device report.
//
// Pattern: yolink/+/+/report
func (Topics) AllDeviceReports() string {
	return TopicPrefix + "/+/+/report"
}
