package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"

	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/nerrad567/robotlan-core/internal/infrastructure/mqtt"
)

var (
	// ErrNotConnected is returned by commands and option changes while the
	// session is not Connected.
	ErrNotConnected = errors.New("session: robot not connected")

	// ErrVerifyTimeout is returned by Verify when no report arrives in time.
	ErrVerifyTimeout = errors.New("session: timed out waiting for robot state")
)

// ConnectErrorKind classifies a failed connect.
type ConnectErrorKind int

// Connect failure kinds.
const (
	Unspecified ConnectErrorKind = iota
	IncorrectCredentials
	ConnectionRefused
	ConnectionTimedOut
)

func (k ConnectErrorKind) String() string {
	switch k {
	case IncorrectCredentials:
		return "incorrect_credentials"
	case ConnectionRefused:
		return "connection_refused"
	case ConnectionTimedOut:
		return "connection_timed_out"
	default:
		return "unspecified"
	}
}

// ConnectError is a classified transport connect failure.
type ConnectError struct {
	Kind ConnectErrorKind
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect failed (%s): %v", e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// FriendlyMessage is the connection-state message for this failure. It
// assumes the robot has already been seen answering at the address.
func (e *ConnectError) FriendlyMessage() string {
	switch e.Kind {
	case ConnectionRefused:
		return "Another app is already connected"
	case IncorrectCredentials:
		return "Incorrect password"
	case ConnectionTimedOut:
		return "Connection timed out"
	default:
		return fmt.Sprintf("Unspecified error (%v)", e.Err)
	}
}

// Error text fragments matched when no typed error is available. Windows
// and .NET-style stacks phrase refusal as "actively refused it".
var (
	credentialPhrases = []string{"badusernameorpassword", "bad user name or password", "not authorized"}
	refusedPhrases    = []string{"actively refused it", "connection refused"}
	timeoutPhrases    = []string{"timed out", "i/o timeout"}
)

// ClassifyConnectError maps a transport error to a ConnectError. Typed
// errors are checked first, then the message text of every wrapped error.
func ClassifyConnectError(err error) *ConnectError {
	if err == nil {
		return nil
	}
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce
	}
	return &ConnectError{Kind: classify(err), Err: err}
}

func classify(err error) ConnectErrorKind {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.Is(err, mqtt.ErrTimeout),
		errors.As(err, &netErr) && netErr.Timeout():
		return ConnectionTimedOut

	case errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword),
		errors.Is(err, packets.ErrorRefusedNotAuthorised):
		return IncorrectCredentials

	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, packets.ErrorRefusedServerUnavailable),
		errors.Is(err, packets.ErrorRefusedIDRejected):
		return ConnectionRefused
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		msg := strings.ToLower(e.Error())
		switch {
		case containsAny(msg, credentialPhrases):
			return IncorrectCredentials
		case containsAny(msg, refusedPhrases):
			return ConnectionRefused
		case containsAny(msg, timeoutPhrases):
			return ConnectionTimedOut
		}
	}
	return Unspecified
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
