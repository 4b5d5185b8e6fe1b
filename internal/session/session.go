package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/robotlan-core/internal/discovery"
	"github.com/nerrad567/robotlan-core/internal/robot"
	"github.com/nerrad567/robotlan-core/internal/shadow"
)

// DefaultEventBuffer is the capacity of a session's event channel.
const DefaultEventBuffer = 64

// Session manages the connection to one robot.
//
// A session owns its shadow document and connection state. Observers read
// them through Events and the query methods; nothing outside the session
// mutates either.
//
// Thread Safety: all methods are safe for concurrent use.
type Session struct {
	id       robot.Identity
	model    robot.Model
	dialer   Dialer
	finder   Finder
	store    AddressStore
	logger   Logger
	timings  Timings
	now      func() time.Time
	fallback string

	events chan Event

	mu      sync.Mutex
	ctx     context.Context
	started bool
	closed  bool
	state   ConnectionState

	// gen identifies the current connection attempt. Callbacks from a
	// superseded attempt carry an older gen and are dropped.
	gen           uint64
	cancelAttempt context.CancelFunc
	transport     Transport
	address       string

	// lostWhileConnecting is set when the transport of the current attempt
	// drops before the session reaches Connected.
	lostWhileConnecting bool

	doc           *shadow.Document
	receivedFirst bool
	settled       bool
	status        robot.Status
	hasStatus     bool
	lastJobStart  json.RawMessage
	debouncer     *robot.Debouncer

	installingSince time.Time
	unexpectedSeen  map[robot.UnexpectedValue]struct{}

	settle    timerSlot
	debounce  timerSlot
	reconnect timerSlot
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTimings replaces the default delays.
func WithTimings(t Timings) Option {
	return func(s *Session) { s.timings = t }
}

// WithAddress sets the address tried when the store has none.
func WithAddress(address string) Option {
	return func(s *Session) { s.fallback = address }
}

// WithEventBuffer sets the event channel capacity.
func WithEventBuffer(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.events = make(chan Event, n)
		}
	}
}

// WithClock replaces time.Now for debounce and update-grace decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New creates a session for id. It does not connect until Start.
//
// An identity that fails validation yields a session pinned in FatalError
// that never connects.
func New(id robot.Identity, dialer Dialer, finder Finder, store AddressStore, opts ...Option) *Session {
	s := &Session{
		id:             id,
		dialer:         dialer,
		finder:         finder,
		store:          store,
		logger:         noopLogger{},
		timings:        DefaultTimings(),
		now:            time.Now,
		events:         make(chan Event, DefaultEventBuffer),
		ctx:            context.Background(),
		state:          ConnectionState{Phase: PhaseDisconnected, Message: MessageDisconnected},
		doc:            shadow.New(),
		unexpectedSeen: make(map[robot.UnexpectedValue]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.finder == nil {
		s.finder = noFinder{}
	}
	if s.store == nil {
		s.store = noopStore{}
	}

	s.debouncer = &robot.Debouncer{
		Normal:          s.timings.Debounce,
		Transient:       s.timings.TransientDebounce,
		TransientWindow: s.timings.TransientWindow,
	}

	err := id.Validate()
	if err == nil {
		s.model, err = robot.ModelFor(id.Family)
	}
	if err != nil {
		s.logger.Error("robot identity rejected", "robot_id", id.ID, "error", err)
		s.state = ConnectionState{Phase: PhaseFatalError, Message: MessageIdentityCorrupt}
	}
	return s
}

// Start begins connecting. ctx bounds every connection attempt the
// session makes; Close is still required to release the session.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.closed {
		return
	}
	s.started = true
	if ctx != nil {
		s.ctx = ctx
	}
	if s.state.Disabled() {
		return
	}
	s.connectLocked(false)
}

// Close disconnects, cancels every timer and closes the event channel.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	tr := s.teardownLocked()
	s.closed = true
	close(s.events)
	s.mu.Unlock()

	if tr != nil {
		tr.Close()
	}
}

// Events returns the session's event channel. It is closed by Close.
// Events are dropped, with a warning, when the channel is full.
func (s *Session) Events() <-chan Event {
	return s.events
}

// ID returns the robot id.
func (s *Session) ID() string {
	return s.id.ID
}

// Family returns the configured product family.
func (s *Session) Family() robot.Family {
	return s.id.Family
}

// State returns the current connection state.
func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Address returns the address of the current or most recent connection.
func (s *Session) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

// Status returns the latest classification. ok is false until the first
// report has settled.
func (s *Session) Status() (st robot.Status, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.hasStatus
}

// Snapshot returns a copy of the shadow document.
func (s *Session) Snapshot() shadow.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Snapshot()
}

// LastJobStartCommand returns the most recent start command the robot
// reported, or nil.
func (s *Session) LastJobStartCommand() json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastJobStart
}

// Disable tears down the connection and pins the session offline until
// Enable. source, when set, names who disabled it. It returns false if the
// session was already disabled or cannot connect at all.
func (s *Session) Disable(source string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.model == nil || s.state.Disabled() {
		return false
	}
	if tr := s.teardownLocked(); tr != nil {
		go tr.Close()
	}

	msg := MessageDisabled
	if source != "" {
		msg += " by " + source
	}
	s.setStateLocked(PhaseCannotConnect, ReasonConnectionDisabledByUser, msg)
	s.logger.Info("connection disabled", "robot_id", s.id.ID, "source", source)
	return true
}

// Enable resumes connecting a disabled session. It returns false unless
// the session was disabled.
func (s *Session) Enable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.state.Disabled() {
		return false
	}
	s.logger.Info("connection enabled", "robot_id", s.id.ID)
	if !s.started {
		s.setStateLocked(PhaseDisconnected, ReasonNone, MessageDisconnected)
		return true
	}
	return s.connectLocked(true)
}

// teardownLocked cancels the current attempt and every timer, and
// detaches the transport. The caller closes the returned transport.
func (s *Session) teardownLocked() Transport {
	if s.cancelAttempt != nil {
		s.cancelAttempt()
		s.cancelAttempt = nil
	}
	s.settle.stop()
	s.debounce.stop()
	s.reconnect.stop()
	s.gen++

	tr := s.transport
	s.transport = nil
	return tr
}

// setStateLocked publishes a new connection state. Identical states are
// not re-published.
func (s *Session) setStateLocked(phase Phase, reason Reason, msg string) {
	if phase == PhaseCannotConnect && reason != ReasonConnectionDisabledByUser && s.installingUpdateLocked() {
		msg = MessageInstallingUpdate
	}

	next := ConnectionState{Phase: phase, Reason: reason, Message: msg}
	if next == s.state {
		return
	}
	if phase == PhaseConnected && s.state.Phase != PhaseConnected {
		s.installingSince = time.Time{}
	}
	s.state = next

	s.logger.Info("connection state changed",
		"robot_id", s.id.ID,
		"phase", phase.String(),
		"reason", reason.String(),
		"message", msg,
	)
	s.emitLocked(ConnectionChanged{
		Meta:    newMeta(s.id.ID, s.now()),
		State:   next,
		Address: s.address,
	})
}

func (s *Session) installingUpdateLocked() bool {
	return !s.installingSince.IsZero() && s.now().Sub(s.installingSince) < s.timings.InstallGrace
}

func (s *Session) emitLocked(e Event) {
	if s.closed {
		return
	}
	select {
	case s.events <- e:
	default:
		s.logger.Warn("event channel full, dropping event", "robot_id", s.id.ID, "event_id", e.EventID())
	}
}

type noFinder struct{}

func (noFinder) Probe(context.Context, string) (discovery.Robot, error) {
	return discovery.Robot{}, discovery.ErrNoReply
}

func (noFinder) FindRobot(context.Context, string) (discovery.Robot, error) {
	return discovery.Robot{}, discovery.ErrNotFound
}
