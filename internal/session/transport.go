package session

import (
	"context"

	"github.com/nerrad567/robotlan-core/internal/discovery"
	"github.com/nerrad567/robotlan-core/internal/robot"
)

// Handlers receive transport callbacks. They may be called from any
// goroutine, but reports arrive in order.
type Handlers struct {
	// OnReport receives the state.reported object of each report.
	OnReport func(reported []byte)

	// OnLost is called once if the connection drops. It is not called
	// after Close.
	OnLost func(err error)
}

// Dialer opens transports to robots.
type Dialer interface {
	Dial(ctx context.Context, address string, id robot.Identity, h Handlers) (Transport, error)
}

// Transport is an open robot connection. Publish failures are not
// reported; a broken connection surfaces through Handlers.OnLost.
type Transport interface {
	SendCommand(cmd robot.Command, extra map[string]any)
	SendDelta(partial map[string]any)
	Close()
}

// Finder locates robots on the network.
type Finder interface {
	Probe(ctx context.Context, address string) (discovery.Robot, error)
	FindRobot(ctx context.Context, id string) (discovery.Robot, error)
}

// AddressStore persists the last address each robot was reached at.
type AddressStore interface {
	LastAddress(ctx context.Context, robotID string) (string, error)
	SetLastAddress(ctx context.Context, robotID, address string) error
}

// Logger is the logging interface used by sessions.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopStore struct{}

func (noopStore) LastAddress(context.Context, string) (string, error)    { return "", nil }
func (noopStore) SetLastAddress(context.Context, string, string) error { return nil }
