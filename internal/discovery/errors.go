package discovery

import "errors"

var (
	// ErrNoReply is returned by Probe when the address does not answer in time.
	ErrNoReply = errors.New("discovery: no reply")

	// ErrNotFound is returned by FindRobot when no reply carries the id.
	ErrNotFound = errors.New("discovery: robot not found")

	// ErrMalformedReply is returned when a reply has no usable id.
	ErrMalformedReply = errors.New("discovery: malformed reply")

	// ErrNoInterfaces is returned when no up IPv4 interface can be probed.
	ErrNoInterfaces = errors.New("discovery: no usable network interfaces")
)
