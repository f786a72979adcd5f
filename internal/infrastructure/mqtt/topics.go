package mqtt

import "fmt"

// Topic prefixes for the SonicLink MQTT namespace.
//
// All device topics use the flat scheme: soniclink/{category}/{device_id}.
const (
	// TopicPrefix is the base for all SonicLink topics.
	TopicPrefix = "soniclink"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "soniclink/system"
)

// Topics provides builders for SonicLink MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct{}

// SystemStatus returns the topic for service online/offline status.
// The LWT is registered against this topic.
//
// Example: soniclink/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// DeviceState returns the retained topic carrying a device's full snapshot.
//
// Example: soniclink/state/4a1c-kitchen
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, deviceID)
}

// DeviceAvailability returns the retained topic carrying a device's
// reachability ("online"/"offline") as seen by its polling loop.
//
// Example: soniclink/availability/4a1c-kitchen
func (Topics) DeviceAvailability(deviceID string) string {
	return fmt.Sprintf("%s/availability/%s", TopicPrefix, deviceID)
}

// DeviceCommand returns the topic on which playback commands for a device
// are accepted.
//
// Example: soniclink/command/4a1c-kitchen
func (Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, deviceID)
}

// AllDeviceCommands returns a wildcard pattern matching every device's
// command topic.
//
// Example: soniclink/command/+
func (Topics) AllDeviceCommands() string {
	return TopicPrefix + "/command/+"
}

// DeviceIDFromCommandTopic extracts the device ID from a command topic.
// Returns "" if the topic does not match the command scheme.
func DeviceIDFromCommandTopic(topic string) string {
	prefix := TopicPrefix + "/command/"
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return ""
	}
	return topic[len(prefix):]
}
