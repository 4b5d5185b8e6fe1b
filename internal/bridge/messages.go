package bridge

import (
	"time"

	"github.com/nerrad567/robotlan-core/internal/robot"
	"github.com/nerrad567/robotlan-core/internal/session"
)

// ConnectionMessage is published on robotlan/<id>/connection.
type ConnectionMessage struct {
	RobotID   string        `json:"robot_id"`
	Timestamp time.Time     `json:"timestamp"`
	Phase     session.Phase `json:"phase"`
	Reason    string        `json:"reason,omitempty"`
	Message   string        `json:"message"`
	Address   string        `json:"address,omitempty"`

	// ErrorCode is the internal error code for failure states.
	ErrorCode int `json:"error_code,omitempty"`
}

// StatusMessage is published on robotlan/<id>/status.
type StatusMessage struct {
	RobotID   string        `json:"robot_id"`
	Timestamp time.Time     `json:"timestamp"`
	Status    robot.Status  `json:"status"`
	Derived   robot.Derived `json:"derived"`
}

// UnexpectedMessage is published on robotlan/<id>/unexpected.
type UnexpectedMessage struct {
	RobotID   string    `json:"robot_id"`
	Timestamp time.Time `json:"timestamp"`
	Field     string    `json:"field"`
	Value     string    `json:"value"`
}

// CommandMessage is accepted on robotlan/<id>/command. Either Command or
// Target is set; Target names a RobotStatus such as "clean" or "dockManually".
type CommandMessage struct {
	Command string         `json:"command,omitempty"`
	Target  string         `json:"target,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
}

// SetMessage is accepted on robotlan/<id>/set/<option>.
type SetMessage struct {
	Value any `json:"value"`
}

func connectionMessage(e session.ConnectionChanged) ConnectionMessage {
	msg := ConnectionMessage{
		RobotID:   e.RobotID(),
		Timestamp: e.Time.UTC(),
		Phase:     e.State.Phase,
		Message:   e.State.Message,
		Address:   e.Address,
	}
	if e.State.Reason != session.ReasonNone {
		msg.Reason = e.State.Reason.String()
	}
	if code, ok := e.State.InternalError(); ok {
		msg.ErrorCode = code
	}
	return msg
}

func statusMessage(e session.StatusChanged) StatusMessage {
	return StatusMessage{
		RobotID:   e.RobotID(),
		Timestamp: e.Time.UTC(),
		Status:    e.Status,
		Derived:   e.Derived,
	}
}
