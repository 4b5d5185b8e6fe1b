package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is the root of all host-side robotlan topics.
const DefaultTopicPrefix = "robotlan"

// Robot-side topics. These are fixed by robot firmware.
const (
	// RobotCommandTopic receives mission commands.
	RobotCommandTopic = "cmd"

	// RobotDeltaTopic receives partial configuration changes.
	RobotDeltaTopic = "delta"

	// robotShadowNamespace prefixes the per-robot state report topic.
	robotShadowNamespace = "$aws"
)

// RobotShadowUpdate returns the state report topic for a robot.
//
// Example: $aws/things/3145C61042726780/shadow/update
func RobotShadowUpdate(robotID string) string {
	return fmt.Sprintf("%s/things/%s/shadow/update", robotShadowNamespace, robotID)
}

// Topics provides builders for host-side robotlan topics.
//
//	topics := mqtt.Topics{}
//	statusTopic := topics.Status("3145C61042726780")
//	// Returns: "robotlan/3145C61042726780/status"
type Topics struct {
	// Prefix replaces DefaultTopicPrefix when set.
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// =============================================================================
// Per-robot Topics
// =============================================================================

// Connection returns the retained connection state topic for a robot.
//
// Example: robotlan/3145C61042726780/connection
func (t Topics) Connection(robotID string) string {
	return fmt.Sprintf("%s/%s/connection", t.prefix(), robotID)
}

// Status returns the retained normalized status topic for a robot.
//
// Example: robotlan/3145C61042726780/status
func (t Topics) Status(robotID string) string {
	return fmt.Sprintf("%s/%s/status", t.prefix(), robotID)
}

// Unexpected returns the topic for unexpected enumerated values.
//
// Example: robotlan/3145C61042726780/unexpected
func (t Topics) Unexpected(robotID string) string {
	return fmt.Sprintf("%s/%s/unexpected", t.prefix(), robotID)
}

// Command returns the topic on which the bridge accepts commands for a robot.
//
// Example: robotlan/3145C61042726780/command
func (t Topics) Command(robotID string) string {
	return fmt.Sprintf("%s/%s/command", t.prefix(), robotID)
}

// Set returns the topic on which the bridge accepts an option change.
//
// Example: robotlan/3145C61042726780/set/childLock
func (t Topics) Set(robotID, option string) string {
	return fmt.Sprintf("%s/%s/set/%s", t.prefix(), robotID, option)
}

// =============================================================================
// Bridge Topics
// =============================================================================

// BridgeStatus returns the bridge online/offline topic used for the LWT.
//
// Example: robotlan/bridge/status
func (t Topics) BridgeStatus() string {
	return fmt.Sprintf("%s/bridge/status", t.prefix())
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllCommands matches command topics for every robot.
//
// Pattern: robotlan/+/command
func (t Topics) AllCommands() string {
	return fmt.Sprintf("%s/+/command", t.prefix())
}

// AllSets matches option topics for every robot.
//
// Pattern: robotlan/+/set/+
func (t Topics) AllSets() string {
	return fmt.Sprintf("%s/+/set/+", t.prefix())
}

// ParseRobotTopic splits a per-robot topic into robot id, kind, and the
// optional trailing segment. ok is false when topic is not under the prefix.
//
// Example: "robotlan/ABC/set/childLock" -> ("ABC", "set", "childLock", true)
func (t Topics) ParseRobotTopic(topic string) (robotID, kind, rest string, ok bool) {
	tail, found := strings.CutPrefix(topic, t.prefix()+"/")
	if !found {
		return "", "", "", false
	}
	parts := strings.Split(tail, "/")
	switch len(parts) {
	case 2:
		return parts[0], parts[1], "", parts[0] != "" && parts[1] != ""
	case 3:
		return parts[0], parts[1], parts[2], parts[0] != "" && parts[1] != "" && parts[2] != ""
	default:
		return "", "", "", false
	}
}
