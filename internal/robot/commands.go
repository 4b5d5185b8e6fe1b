package robot

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// Command is a mission command understood by robot firmware.
type Command string

// Commands.
const (
	CommandStart  Command = "start"
	CommandStop   Command = "stop"
	CommandPause  Command = "pause"
	CommandResume Command = "resume"
	CommandDock   Command = "dock"
	CommandFind   Command = "find"
	CommandTrain  Command = "train"
	CommandReset  Command = "reset"
	CommandEvac   Command = "evac"
)

// AllCommands lists every command in a stable order.
var AllCommands = []Command{
	CommandStart, CommandStop, CommandPause, CommandResume, CommandDock,
	CommandFind, CommandTrain, CommandReset, CommandEvac,
}

// Initiator identifies this client in command payloads.
const Initiator = "localApp"

// CommandPayload serializes a command. Keys in extra are included, but the
// command, time and initiator keys always win.
func CommandPayload(cmd Command, extra map[string]any, now time.Time) ([]byte, error) {
	msg := make(map[string]any, len(extra)+3)
	maps.Copy(msg, extra)
	msg["command"] = string(cmd)
	msg["time"] = now.Unix()
	msg["initiator"] = Initiator

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding %s command: %w", cmd, err)
	}
	return data, nil
}

// DeltaPayload wraps a partial state for the delta topic.
func DeltaPayload(partial map[string]any) ([]byte, error) {
	data, err := json.Marshal(map[string]any{"state": partial})
	if err != nil {
		return nil, fmt.Errorf("encoding delta: %w", err)
	}
	return data, nil
}

// CommandForStatus returns the command that moves a robot towards target.
func CommandForStatus(target RobotStatus) (Command, bool) {
	switch target {
	case StatusClean:
		return CommandStart, true
	case StatusOffBaseNoJob:
		return CommandStop, true
	case StatusJobPaused:
		return CommandPause, true
	case StatusResume:
		return CommandResume, true
	case StatusDockManually:
		return CommandDock, true
	case StatusFind:
		return CommandFind, true
	case StatusEvac:
		return CommandEvac, true
	case StatusTrain:
		return CommandTrain, true
	default:
		return "", false
	}
}
