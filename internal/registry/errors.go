package registry

import "errors"

var (
	// ErrRobotNotFound is returned for an id with no session.
	ErrRobotNotFound = errors.New("registry: robot not found")

	// ErrRobotExists is returned when adding a robot id twice.
	ErrRobotExists = errors.New("registry: robot already exists")

	// ErrFavoriteNotFound is returned when no favorite has the given name.
	ErrFavoriteNotFound = errors.New("registry: favorite not found")

	// ErrNoJobToSave is returned when saving a favorite before the robot
	// has reported a start command.
	ErrNoJobToSave = errors.New("registry: robot has not reported a job")

	// ErrUnknownBackend is returned for an unsupported store backend.
	ErrUnknownBackend = errors.New("registry: unknown store backend")
)
