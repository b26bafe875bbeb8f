package mqtt

import "strings"

// DefaultTopicPrefix is used when the config leaves the prefix empty.
const DefaultTopicPrefix = "otg"

// Command names accepted on the command topics.
const (
	CommandStart         = "start"
	CommandStop          = "stop"
	CommandEmergencyStop = "emergency_stop"
)

// Topics builds the controller's MQTT topics under a shared prefix.
//
//	topics := mqtt.NewTopics("otg")
//	topics.Cycles() // "otg/automation/cycles"
type Topics struct {
	Prefix string
}

// NewTopics returns a builder for prefix, trimming slashes and falling back
// to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) join(parts ...string) string {
	prefix := t.Prefix
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return prefix + "/" + strings.Join(parts, "/")
}

// Presence is the retained online/offline topic, also used as the LWT.
//
// Example: otg/system/status
func (t Topics) Presence() string {
	return t.join("system", "status")
}

// EngineStatus carries retained engine state changes.
//
// Example: otg/automation/status
func (t Topics) EngineStatus() string {
	return t.join("automation", "status")
}

// Cycles carries one message per completed automation cycle.
//
// Example: otg/automation/cycles
func (t Topics) Cycles() string {
	return t.join("automation", "cycles")
}

// Command is the topic for a single engine command.
//
// Example: otg/automation/command/stop
func (t Topics) Command(name string) string {
	return t.join("automation", "command", name)
}

// CommandResult carries the outcome of a command received on Command(name).
//
// Example: otg/automation/result/stop
func (t Topics) CommandResult(name string) string {
	return t.join("automation", "result", name)
}

// AllCommands matches every engine command topic.
//
// Pattern: otg/automation/command/+
func (t Topics) AllCommands() string {
	return t.join("automation", "command", "+")
}

// CommandName extracts the command from a topic matched by AllCommands.
// It returns "" when topic is not a command topic under this prefix.
func (t Topics) CommandName(topic string) string {
	base := t.join("automation", "command") + "/"
	name, ok := strings.CutPrefix(topic, base)
	if !ok || name == "" || strings.Contains(name, "/") {
		return ""
	}
	return name
}

// AllTopics matches everything under the prefix.
//
// Pattern: otg/#
func (t Topics) AllTopics() string {
	return t.join("#")
}
