package mqtt

import "fmt"

// DefaultTopicPrefix is used when Topics.Prefix is empty.
const DefaultTopicPrefix = "rfcontrol"

// Topics builds the MQTT topics this service publishes to.
//
//	topics := mqtt.Topics{Prefix: "home"}
//	topics.Command("rf", "dev-1234")
//	// Returns: "home/command/rf/dev-1234"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// Command returns the topic a transmitter of the given profile variant
// listens on for commands addressed to deviceID.
//
// Example: rfcontrol/command/rf/dev-1234
func (t Topics) Command(variant, deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", t.prefix(), variant, deviceID)
}

// AllCommands returns a pattern matching every command for a variant.
// Transmitter bridges subscribe to it.
//
// Pattern: rfcontrol/command/rf/+
func (t Topics) AllCommands(variant string) string {
	return fmt.Sprintf("%s/command/%s/+", t.prefix(), variant)
}

// SystemStatus returns the retained service status topic.
//
// Example: rfcontrol/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}
