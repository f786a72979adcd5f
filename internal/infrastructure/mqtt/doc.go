// Package mqtt provides the MQTT client for SonicLink Core.
//
// The client publishes retained per-device state and availability topics
// consumed by home-automation systems, and subscribes to per-device command
// topics so playback can be driven over the bus as well as the HTTP API.
//
// # Topic scheme
//
//	soniclink/system/status          service online/offline (retained, LWT)
//	soniclink/state/{device_id}      full device snapshot (retained)
//	soniclink/availability/{id}      device reachability (retained)
//	soniclink/command/{device_id}    inbound playback commands (JSON)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{}
//	client.PublishRetained(topics.DeviceState(id), payload)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Subscriptions are restored
// automatically on reconnect.
package mqtt
