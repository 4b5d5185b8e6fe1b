package session

import (
	"time"

	"github.com/nerrad567/robotlan-core/internal/infrastructure/config"
)

// Timings holds every delay a session uses.
type Timings struct {
	Settle                time.Duration
	TypeValidationTimeout time.Duration
	TypeValidationPoll    time.Duration
	Debounce              time.Duration
	TransientDebounce     time.Duration
	TransientWindow       time.Duration
	ReconnectDelay        time.Duration
	DisconnectRetryDelay  time.Duration
	InstallGrace          time.Duration
	VerifyTimeout         time.Duration
}

// DefaultTimings returns the delays robots are known to need.
func DefaultTimings() Timings {
	return Timings{
		Settle:                time.Second,
		TypeValidationTimeout: 5 * time.Second,
		TypeValidationPoll:    100 * time.Millisecond,
		Debounce:              500 * time.Millisecond,
		TransientDebounce:     10 * time.Second,
		TransientWindow:       time.Second,
		ReconnectDelay:        30 * time.Second,
		DisconnectRetryDelay:  time.Second,
		InstallGrace:          10 * time.Minute,
		VerifyTimeout:         10 * time.Second,
	}
}

// TimingsFromConfig converts the file configuration.
func TimingsFromConfig(c config.SessionConfig) Timings {
	t := DefaultTimings()
	t.Settle = c.SettleDelay()
	t.TypeValidationTimeout = c.TypeValidationTimeout()
	t.TypeValidationPoll = c.TypeValidationPoll()
	t.Debounce = c.Debounce()
	t.TransientDebounce = c.TransientDebounce()
	t.TransientWindow = c.TransientWindow()
	t.ReconnectDelay = c.ReconnectDelay()
	t.DisconnectRetryDelay = c.DisconnectRetryDelay()
	t.InstallGrace = c.InstallGrace()
	return t
}
