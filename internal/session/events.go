package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/robotlan-core/internal/robot"
)

// Event is delivered on a session's event channel. The concrete type is
// one of ConnectionChanged, StatusChanged or UnexpectedValue.
type Event interface {
	EventID() uuid.UUID
	RobotID() string
}

// Meta is common to every event.
type Meta struct {
	ID    uuid.UUID `json:"id"`
	Robot string    `json:"robotId"`
	Time  time.Time `json:"time"`
}

// EventID returns the event's unique id.
func (m Meta) EventID() uuid.UUID { return m.ID }

// RobotID returns the id of the robot the event is about.
func (m Meta) RobotID() string { return m.Robot }

// ConnectionChanged reports a new connection state.
type ConnectionChanged struct {
	Meta
	State   ConnectionState `json:"state"`
	Address string          `json:"address,omitempty"`
}

// StatusChanged reports a debounced status.
type StatusChanged struct {
	Meta
	Status  robot.Status  `json:"status"`
	Derived robot.Derived `json:"derived"`
}

// UnexpectedValue reports an enumerated value outside the known set.
type UnexpectedValue struct {
	Meta
	robot.UnexpectedValue
}

func newMeta(robotID string, now time.Time) Meta {
	return Meta{ID: uuid.New(), Robot: robotID, Time: now}
}
