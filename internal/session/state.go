package session

import "fmt"

// Phase is the connection phase of a session.
type Phase int

// Connection phases.
const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseConnected
	PhaseCannotConnect
	PhaseFatalError
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseCannotConnect:
		return "cannot_connect"
	case PhaseFatalError:
		return "fatal_error"
	default:
		return "disconnected"
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	for c := PhaseDisconnected; c <= PhaseFatalError; c++ {
		if c.String() == string(text) {
			*p = c
			return nil
		}
	}
	return fmt.Errorf("unknown connection phase %q", text)
}

// Reason explains a CannotConnect phase.
type Reason int

// CannotConnect reasons.
const (
	ReasonNone Reason = iota
	ReasonCannotDiscover
	ReasonDiscoveredButRefused
	ReasonTypeValidationFailed
	ReasonConnectionDisabledByUser
)

func (r Reason) String() string {
	switch r {
	case ReasonCannotDiscover:
		return "cannot_discover"
	case ReasonDiscoveredButRefused:
		return "discovered_but_refused"
	case ReasonTypeValidationFailed:
		return "type_validation_failed"
	case ReasonConnectionDisabledByUser:
		return "connection_disabled_by_user"
	default:
		return "none"
	}
}

// MarshalText encodes the reason by name.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a reason name.
func (r *Reason) UnmarshalText(text []byte) error {
	for c := ReasonNone; c <= ReasonConnectionDisabledByUser; c++ {
		if c.String() == string(text) {
			*r = c
			return nil
		}
	}
	return fmt.Errorf("unknown connection reason %q", text)
}

// Connection-state messages.
const (
	MessageConnecting        = "Connecting"
	MessageConnected         = "OK"
	MessageDisconnected      = "Disconnected"
	MessageNotFound          = "Not found on the network"
	MessageTypeUnverified    = "Could not verify robot type"
	MessageDisabled          = "Connection disabled"
	MessageInstallingUpdate  = "Installing software update"
	MessageIdentityCorrupt   = "Robot identity is irreparably corrupt. Delete and re-add the robot."
	messageDownloadingFormat = "OK (Downloading software update %d%%)"
)

// ConnectionState is the public state of a session.
type ConnectionState struct {
	Phase   Phase  `json:"phase"`
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}

// Disabled reports whether the user pinned the session offline.
func (s ConnectionState) Disabled() bool {
	return s.Phase == PhaseCannotConnect && s.Reason == ReasonConnectionDisabledByUser
}

// Host error codes reported alongside the connection state.
const (
	ErrorCodeDisconnected   = 10001
	ErrorCodeCannotDiscover = 10002
	ErrorCodeRefused        = 10003
	ErrorCodeDisabled       = 10004
)

// InternalError maps the state to a host error code. ok is false while
// Connecting or in FatalError, where the previous code should stand.
func (s ConnectionState) InternalError() (code int, ok bool) {
	switch s.Phase {
	case PhaseConnected:
		return 0, true
	case PhaseDisconnected:
		return ErrorCodeDisconnected, true
	case PhaseCannotConnect:
		switch s.Reason {
		case ReasonCannotDiscover:
			return ErrorCodeCannotDiscover, true
		case ReasonDiscoveredButRefused, ReasonTypeValidationFailed:
			return ErrorCodeRefused, true
		case ReasonConnectionDisabledByUser:
			return ErrorCodeDisabled, true
		default:
			return ErrorCodeDisconnected, true
		}
	default:
		return 0, false
	}
}
