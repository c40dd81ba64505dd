// Package mqtt provides MQTT connectivity for yolink-bridge.
//
// Two brokers are involved:
//   - The YoLink cloud broker, which delivers device reports. Options for it
//     come from NewVendorOptions; the ingest Subscriber owns that session.
//     Message handlers run in arrival order on paho's router goroutine.
//   - A local broker (typically Mosquitto), to which Client republishes
//     selected device states for downstream consumers.
//
// # Local Broker
//
// Client keeps a long-lived session with paho auto-reconnect and maintains
// a retained status message with a Last Will for crash detection:
//
//	yolink/bridge/status            online / offline (retained, LWT)
//	yolink/{type}/{device_id}/report republished device state
//
// # Security Considerations
//
//   - Use TLS (cfg.Broker.TLS=true) when the local broker is not on loopback
//   - The cloud session carries the OAuth access token as its username;
//     never log client options
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.DeviceReport("DoorSensor", deviceID)
//	err = client.Publish(ctx, topic, []byte("DoorEvent.OPEN"), 0, false)
package mqtt
