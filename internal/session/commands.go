package session

import (
	"fmt"

	"github.com/nerrad567/robotlan-core/internal/robot"
)

// SendCommand publishes a mission command. It fails without side effects
// when the family does not accept cmd or the session is not Connected.
func (s *Session) SendCommand(cmd robot.Command, extra map[string]any) error {
	s.mu.Lock()
	if s.model != nil && !s.model.SupportsCommand(cmd) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s for %s", robot.ErrUnsupportedCommand, cmd, s.id.Family)
	}
	tr, err := s.connectedTransportLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.logger.Info("sending command", "robot_id", s.id.ID, "command", cmd)
	tr.SendCommand(cmd, extra)
	return nil
}

// Control sends the command that moves the robot towards target.
func (s *Session) Control(target robot.RobotStatus) error {
	cmd, ok := robot.CommandForStatus(target)
	if !ok {
		return fmt.Errorf("%w: no command reaches %s", robot.ErrUnsupportedCommand, target)
	}
	return s.SendCommand(cmd, nil)
}

// StartFavorite starts a job with a favorite's saved parameters.
func (s *Session) StartFavorite(f robot.Favorite) error {
	return s.SendCommand(robot.CommandStart, f.StartParams())
}

// SetOption publishes a configuration change. The robot confirms it with
// a later state report, if at all.
func (s *Session) SetOption(opt robot.Option, value any) error {
	s.mu.Lock()
	tr, err := s.connectedTransportLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	supported := s.model.Supports(opt, s.doc.Snapshot())
	s.mu.Unlock()

	if !supported {
		return fmt.Errorf("%w: %s", robot.ErrUnsupportedOption, opt)
	}
	delta, err := robot.OptionDelta(opt, value)
	if err != nil {
		return err
	}

	s.logger.Info("setting option", "robot_id", s.id.ID, "option", opt)
	tr.SendDelta(delta)
	return nil
}

// SupportedOptions lists the options the robot currently reports support
// for. It is empty until the robot has reported.
func (s *Session) SupportedOptions() []robot.Option {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model == nil {
		return nil
	}
	snap := s.doc.Snapshot()
	var opts []robot.Option
	for _, opt := range robot.AllOptions {
		if s.model.Supports(opt, snap) {
			opts = append(opts, opt)
		}
	}
	return opts
}

// Options returns the current value of every supported option.
func (s *Session) Options() map[robot.Option]any {
	supported := s.SupportedOptions()

	s.mu.Lock()
	st, ok := s.status, s.hasStatus
	s.mu.Unlock()

	values := make(map[robot.Option]any, len(supported))
	if !ok {
		return values
	}
	for _, opt := range supported {
		if v, ok := robot.OptionValue(opt, st); ok {
			values[opt] = v
		}
	}
	return values
}

func (s *Session) connectedTransportLocked() (Transport, error) {
	if s.state.Phase != PhaseConnected || s.transport == nil {
		return nil, ErrNotConnected
	}
	return s.transport, nil
}
