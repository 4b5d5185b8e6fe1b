package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"

	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/nerrad567/robotlan-core/internal/infrastructure/mqtt"
)

func TestClassifyConnectError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ConnectErrorKind
	}{
		// Typed errors.
		{"context deadline", fmt.Errorf("connect: %w", context.DeadlineExceeded), ConnectionTimedOut},
		{"os deadline", os.ErrDeadlineExceeded, ConnectionTimedOut},
		{"mqtt timeout", fmt.Errorf("%w: %w after 10s", mqtt.ErrConnectionFailed, mqtt.ErrTimeout), ConnectionTimedOut},
		{"bad credentials", fmt.Errorf("%w: %w", mqtt.ErrConnectionFailed, packets.ErrorRefusedBadUsernameOrPassword), IncorrectCredentials},
		{"not authorised", packets.ErrorRefusedNotAuthorised, IncorrectCredentials},
		{"econnrefused", fmt.Errorf("dial tcp 10.0.0.1:8883: %w", syscall.ECONNREFUSED), ConnectionRefused},
		{"server unavailable", packets.ErrorRefusedServerUnavailable, ConnectionRefused},
		{"id rejected", packets.ErrorRefusedIDRejected, ConnectionRefused},

		// Message text fallbacks.
		{"BadUserNameOrPassword text", errors.New("CONNACK: BadUserNameOrPassword"), IncorrectCredentials},
		{"bad user name text", errors.New("connection refused: bad user name or password"), IncorrectCredentials},
		{"actively refused text", errors.New("No connection could be made because the target machine actively refused it"), ConnectionRefused},
		{"connection refused text", errors.New("dial tcp 10.0.0.1:8883: connect: connection refused"), ConnectionRefused},
		{"timed out text", errors.New("operation timed out"), ConnectionTimedOut},
		{"i/o timeout text", errors.New("read tcp: i/o timeout"), ConnectionTimedOut},
		{"wrapped text", fmt.Errorf("outer: %w", errors.New("Connection Refused")), ConnectionRefused},

		{"unknown", errors.New("tls: handshake failure"), Unspecified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyConnectError(tt.err)
			if got.Kind != tt.want {
				t.Errorf("ClassifyConnectError(%v).Kind = %v, want %v", tt.err, got.Kind, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("ClassifyConnectError(%v) does not wrap the original error", tt.err)
			}
		})
	}
}

func TestClassifyConnectError_Nil(t *testing.T) {
	if got := ClassifyConnectError(nil); got != nil {
		t.Errorf("ClassifyConnectError(nil) = %v, want nil", got)
	}
}

func TestClassifyConnectError_AlreadyClassified(t *testing.T) {
	ce := &ConnectError{Kind: IncorrectCredentials, Err: errors.New("connection refused")}
	if got := ClassifyConnectError(fmt.Errorf("verify: %w", ce)); got != ce {
		t.Errorf("ClassifyConnectError() = %v, want the existing ConnectError", got)
	}
}

func TestConnectError_FriendlyMessage(t *testing.T) {
	tests := []struct {
		kind ConnectErrorKind
		want string
	}{
		{ConnectionRefused, "Another app is already connected"},
		{IncorrectCredentials, "Incorrect password"},
		{ConnectionTimedOut, "Connection timed out"},
		{Unspecified, "Unspecified error (tls: handshake failure)"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			ce := &ConnectError{Kind: tt.kind, Err: errors.New("tls: handshake failure")}
			if got := ce.FriendlyMessage(); got != tt.want {
				t.Errorf("FriendlyMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
