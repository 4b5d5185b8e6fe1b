package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultAddress is dialled when neither the store nor the caller knows
// an address. Discovery takes over from the first failure.
const DefaultAddress = "127.0.0.1"

// maxRedirects bounds how many times one attempt follows discovery to a
// new address.
const maxRedirects = 3

// connectLocked starts a new connection attempt, replacing any current
// one. An attempt already in Connecting is only replaced when force is set.
func (s *Session) connectLocked(force bool) bool {
	if s.closed || s.model == nil {
		return false
	}
	if s.state.Phase == PhaseConnecting && !force {
		return false
	}
	if tr := s.teardownLocked(); tr != nil {
		go tr.Close()
	}

	s.doc.Reset()
	s.lostWhileConnecting = false
	s.receivedFirst = false
	s.settled = false
	s.debouncer.Reset()
	s.setStateLocked(PhaseConnecting, ReasonNone, MessageConnecting)

	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelAttempt = cancel
	go s.attempt(ctx, s.gen)
	return true
}

// attempt runs one connection attempt: dial, then on failure work out
// whether the robot moved, then validate the product type.
func (s *Session) attempt(ctx context.Context, gen uint64) {
	attemptID := uuid.NewString()
	address := s.resolveAddress(ctx)

	handlers := Handlers{
		OnReport: func(reported []byte) { s.handleReport(gen, reported) },
		OnLost:   func(err error) { s.handleLost(gen, err) },
	}

	var tr Transport
	for redirects := 0; ; redirects++ {
		s.logger.Debug("connecting to robot", "robot_id", s.id.ID, "attempt", attemptID, "address", address)

		var err error
		tr, err = s.dialer.Dial(ctx, address, s.id, handlers)
		if ctx.Err() != nil {
			if tr != nil {
				tr.Close()
			}
			return
		}
		if err == nil {
			break
		}

		outcome := s.resolveFailure(ctx, attemptID, address, err)
		if ctx.Err() != nil {
			return
		}
		if outcome.retryAt != "" && redirects < maxRedirects {
			s.logger.Info("robot found at new address", "robot_id", s.id.ID, "attempt", attemptID,
				"old_address", address, "new_address", outcome.retryAt)
			address = outcome.retryAt
			continue
		}
		if outcome.retryAt != "" {
			outcome = failureOutcome{reason: ReasonCannotDiscover, message: MessageNotFound}
		}

		s.mu.Lock()
		if s.gen == gen {
			s.address = address
			s.failLocked(outcome.reason, outcome.message)
		}
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		tr.Close()
		return
	}
	s.transport = tr
	s.address = address
	s.mu.Unlock()

	if !s.waitForTypeValidation(ctx) {
		if ctx.Err() != nil {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen {
			return
		}
		if s.lostWhileConnecting {
			s.dropLocked()
			return
		}
		s.logger.Warn("robot type validation failed", "robot_id", s.id.ID, "attempt", attemptID,
			"family", s.id.Family, "address", address)
		s.transport = nil
		go tr.Close()
		s.failLocked(ReasonTypeValidationFailed, MessageTypeUnverified)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	if s.lostWhileConnecting {
		s.dropLocked()
		return
	}
	s.setStateLocked(PhaseConnected, ReasonNone, MessageConnected)
	if s.settled {
		s.classifyLocked()
	}
	go s.persistAddress(s.ctx, address)
}

func (s *Session) resolveAddress(ctx context.Context) string {
	addr, err := s.store.LastAddress(ctx, s.id.ID)
	if err != nil {
		s.logger.Warn("reading last address failed", "robot_id", s.id.ID, "error", err)
	}
	if addr != "" {
		return addr
	}

	s.mu.Lock()
	addr = s.address
	s.mu.Unlock()
	if addr != "" {
		return addr
	}
	if s.fallback != "" {
		return s.fallback
	}
	return DefaultAddress
}

func (s *Session) persistAddress(ctx context.Context, address string) {
	if err := s.store.SetLastAddress(ctx, s.id.ID, address); err != nil {
		s.logger.Warn("saving last address failed", "robot_id", s.id.ID, "address", address, "error", err)
	}
}

type failureOutcome struct {
	reason  Reason
	message string

	// retryAt is set when the robot answers at a different address.
	retryAt string
}

// resolveFailure decides what a failed dial at address means: the robot
// is there but refusing us, it moved, or it cannot be found.
func (s *Session) resolveFailure(ctx context.Context, attemptID, address string, dialErr error) failureOutcome {
	ce := ClassifyConnectError(dialErr)
	s.logger.Warn("robot connect failed",
		"robot_id", s.id.ID,
		"attempt", attemptID,
		"address", address,
		"kind", ce.Kind.String(),
		"error", dialErr,
	)
	refused := failureOutcome{reason: ReasonDiscoveredButRefused, message: ce.FriendlyMessage()}

	if r, err := s.finder.Probe(ctx, address); err == nil && r.ID == s.id.ID {
		return refused
	}

	r, err := s.finder.FindRobot(ctx, s.id.ID)
	switch {
	case err != nil:
		if !errors.Is(err, context.Canceled) {
			s.logger.Debug("robot not discovered", "robot_id", s.id.ID, "attempt", attemptID, "error", err)
		}
		return failureOutcome{reason: ReasonCannotDiscover, message: MessageNotFound}
	case r.Address == address:
		return refused
	default:
		return failureOutcome{retryAt: r.Address}
	}
}

// failLocked moves to CannotConnect and arms the reconnect timer.
func (s *Session) failLocked(reason Reason, msg string) {
	s.setStateLocked(PhaseCannotConnect, reason, msg)
	s.reconnect.arm(s, s.timings.ReconnectDelay, func() {
		s.connectLocked(false)
	})
}

// waitForTypeValidation polls until the document identifies the
// configured family, the transport is lost or the timeout elapses.
func (s *Session) waitForTypeValidation(ctx context.Context) bool {
	timeout := time.NewTimer(s.timings.TypeValidationTimeout)
	defer timeout.Stop()
	poll := time.NewTicker(s.timings.TypeValidationPoll)
	defer poll.Stop()

	for {
		valid, lost := s.validationState()
		if lost {
			return false
		}
		if valid {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-timeout.C:
			valid, lost = s.validationState()
			return valid && !lost
		case <-poll.C:
		}
	}
}

func (s *Session) validationState() (valid, lost bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.IsCorrectType(s.doc.Snapshot()), s.lostWhileConnecting
}

// handleLost reacts to the transport dropping. A loss while Connecting is
// recorded for the attempt, which gives up validation and reconnects.
func (s *Session) handleLost(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.gen != gen {
		return
	}
	switch s.state.Phase {
	case PhaseConnecting:
		s.logger.Warn("robot connection lost while connecting", "robot_id", s.id.ID, "error", err)
		s.lostWhileConnecting = true
	case PhaseConnected:
		s.logger.Warn("robot connection lost", "robot_id", s.id.ID, "address", s.address, "error", err)
		s.dropLocked()
	}
}

// dropLocked moves to Disconnected and schedules a reconnect after the
// short retry delay.
func (s *Session) dropLocked() {
	if tr := s.teardownLocked(); tr != nil {
		go tr.Close()
	}
	s.setStateLocked(PhaseDisconnected, ReasonNone, MessageDisconnected)
	s.reconnect.arm(s, s.timings.DisconnectRetryDelay, func() {
		s.connectLocked(false)
	})
}
