package session

import (
	"fmt"
	"time"

	"github.com/nerrad567/robotlan-core/internal/robot"
)

// updateInstallingThreshold is the download progress at which the robot
// is expected to reboot into the update shortly.
const updateInstallingThreshold = 95

// handleReport merges one state report. The first report of a connection
// arms the settle timer; classification waits for it so robots that split
// their initial state across several messages are classified once whole.
func (s *Session) handleReport(gen uint64, reported []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.gen != gen {
		return
	}

	changes, err := s.doc.MergeJSON(reported)
	if err != nil {
		s.logger.Warn("ignoring malformed state report", "robot_id", s.id.ID, "error", err)
		return
	}
	for _, c := range changes {
		s.logger.Debug("shadow changed", "robot_id", s.id.ID, "change", c.String())
	}

	if !s.receivedFirst {
		s.receivedFirst = true
		s.settle.arm(s, s.timings.Settle, func() {
			s.settled = true
			s.classifyLocked()
		})
		return
	}
	if !s.settled {
		return
	}
	s.classifyLocked()
}

// classifyLocked recomputes the status from the whole document. Status
// events are only scheduled while Connected.
func (s *Session) classifyLocked() {
	st, unexpected := robot.Classify(s.model, s.doc.Snapshot())

	if st.LastJobStartCommand != nil {
		s.lastJobStart = st.LastJobStartCommand
	} else {
		st.LastJobStartCommand = s.lastJobStart
	}

	for _, u := range unexpected {
		if _, seen := s.unexpectedSeen[u]; seen {
			continue
		}
		s.unexpectedSeen[u] = struct{}{}
		s.logger.Warn("unexpected value reported", "robot_id", s.id.ID, "field", u.Field, "value", u.Value)
		s.emitLocked(UnexpectedValue{Meta: newMeta(s.id.ID, s.now()), UnexpectedValue: u})
	}

	s.status = st
	s.hasStatus = true

	if s.state.Phase != PhaseConnected {
		return
	}
	s.trackUpdateLocked(st.OTAProgress)

	delay := s.debouncer.Observe(st.Phase, s.now())
	s.debounce.arm(s, delay, func() {
		s.emitLocked(StatusChanged{
			Meta:    newMeta(s.id.ID, s.now()),
			Status:  s.status,
			Derived: robot.Derive(s.status),
		})
	})
}

// trackUpdateLocked reflects software-update download progress in the
// connection message and marks the session as installing near the end.
func (s *Session) trackUpdateLocked(progress int) {
	msg := MessageConnected
	if progress > 0 {
		msg = fmt.Sprintf(messageDownloadingFormat, progress)
	}
	s.setStateLocked(PhaseConnected, ReasonNone, msg)

	if progress < updateInstallingThreshold {
		s.installingSince = time.Time{}
	} else if s.installingSince.IsZero() {
		s.installingSince = s.now()
	}
}
