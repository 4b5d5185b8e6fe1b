package robot

import "errors"

// Domain-specific errors for robot operations.
var (
	// ErrInvalidIdentity is returned when an identity cannot be used to connect.
	ErrInvalidIdentity = errors.New("robot: invalid identity")

	// ErrUnknownFamily is returned when a product family name is not recognised.
	ErrUnknownFamily = errors.New("robot: unknown product family")

	// ErrUnsupportedOption is returned for options the family cannot change.
	ErrUnsupportedOption = errors.New("robot: option not supported")

	// ErrInvalidOptionValue is returned when an option value has the wrong type or range.
	ErrInvalidOptionValue = errors.New("robot: invalid option value")

	// ErrUnsupportedCommand is returned for commands the family cannot run.
	ErrUnsupportedCommand = errors.New("robot: command not supported")

	// ErrNotAJob is returned when a favorite is saved from a non-start command.
	ErrNotAJob = errors.New("robot: command is not a cleaning job")

	// ErrEmptyJob is returned when a favorite carries no parameters.
	ErrEmptyJob = errors.New("robot: job has no custom parameters")

	// ErrFavoriteExists is returned when a favorite name or job is already saved.
	ErrFavoriteExists = errors.New("robot: favorite already exists")
)
