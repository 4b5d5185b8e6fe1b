package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/robotlan-core/internal/discovery"
	"github.com/nerrad567/robotlan-core/internal/robot"
)

// =============================================================================
// Fakes
// =============================================================================

type sentCommand struct {
	cmd   robot.Command
	extra map[string]any
}

type fakeTransport struct {
	address  string
	handlers Handlers

	mu       sync.Mutex
	commands []sentCommand
	deltas   []map[string]any
	closed   bool
}

func (t *fakeTransport) SendCommand(cmd robot.Command, extra map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commands = append(t.commands, sentCommand{cmd: cmd, extra: extra})
}

func (t *fakeTransport) SendDelta(partial map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deltas = append(t.deltas, partial)
}

func (t *fakeTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *fakeTransport) sentCommands() []sentCommand {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]sentCommand(nil), t.commands...)
}

func (t *fakeTransport) sentDeltas() []map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]map[string]any(nil), t.deltas...)
}

// report delivers a state.reported object the way the robot would.
func (t *fakeTransport) report(reported string) {
	t.handlers.OnReport([]byte(reported))
}

func (t *fakeTransport) lose(err error) {
	t.handlers.OnLost(err)
}

type fakeDialer struct {
	mu     sync.Mutex
	fail   map[string]error
	dials  []string
	onDial func(h Handlers)

	// block, when set, holds every dial until it is closed or the
	// attempt is cancelled.
	block chan struct{}

	dialed chan *fakeTransport
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		fail:   make(map[string]error),
		dialed: make(chan *fakeTransport, 16),
	}
}

func (d *fakeDialer) Dial(ctx context.Context, address string, _ robot.Identity, h Handlers) (Transport, error) {
	d.mu.Lock()
	d.dials = append(d.dials, address)
	err := d.fail[address]
	onDial := d.onDial
	block := d.block
	d.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	if onDial != nil {
		onDial(h)
	}
	tr := &fakeTransport{address: address, handlers: h}
	d.dialed <- tr
	return tr, nil
}

func (d *fakeDialer) setFail(address string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail[address] = err
}

func (d *fakeDialer) dialedAddresses() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dials...)
}

// next waits for the next successful dial.
func (d *fakeDialer) next(t *testing.T) *fakeTransport {
	t.Helper()
	select {
	case tr := <-d.dialed:
		return tr
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dial")
		return nil
	}
}

type fakeFinder struct {
	probe   map[string]discovery.Robot
	found   discovery.Robot
	findErr error
}

func (f *fakeFinder) Probe(_ context.Context, address string) (discovery.Robot, error) {
	if r, ok := f.probe[address]; ok {
		return r, nil
	}
	return discovery.Robot{}, discovery.ErrNoReply
}

func (f *fakeFinder) FindRobot(_ context.Context, _ string) (discovery.Robot, error) {
	if f.findErr != nil {
		return discovery.Robot{}, f.findErr
	}
	return f.found, nil
}

type fakeStore struct {
	mu        sync.Mutex
	addresses map[string]string
}

func newFakeStore(seed map[string]string) *fakeStore {
	s := &fakeStore{addresses: make(map[string]string)}
	for k, v := range seed {
		s.addresses[k] = v
	}
	return s
}

func (s *fakeStore) LastAddress(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addresses[id], nil
}

func (s *fakeStore) SetLastAddress(_ context.Context, id, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses[id] = address
	return nil
}

func (s *fakeStore) get(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addresses[id]
}

// =============================================================================
// Helpers
// =============================================================================

const testRobotID = "3145C61042726780"

func testIdentity(f robot.Family) robot.Identity {
	return robot.Identity{ID: testRobotID, Secret: ":1:1612345678:secret", Family: f}
}

// testTimings scales every delay down to milliseconds. Reconnect after a
// failure is pushed out so tests observe the CannotConnect state.
func testTimings() Timings {
	return Timings{
		Settle:                60 * time.Millisecond,
		TypeValidationTimeout: 150 * time.Millisecond,
		TypeValidationPoll:    5 * time.Millisecond,
		Debounce:              20 * time.Millisecond,
		TransientDebounce:     400 * time.Millisecond,
		TransientWindow:       50 * time.Millisecond,
		ReconnectDelay:        time.Hour,
		DisconnectRetryDelay:  30 * time.Millisecond,
		InstallGrace:          time.Minute,
		VerifyTimeout:         300 * time.Millisecond,
	}
}

type harness struct {
	session *Session
	dialer  *fakeDialer
	finder  *fakeFinder
	store   *fakeStore
}

func newHarness(t *testing.T, f robot.Family, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		dialer: newFakeDialer(),
		finder: &fakeFinder{findErr: discovery.ErrNotFound},
		store:  newFakeStore(map[string]string{testRobotID: "192.168.1.50"}),
	}
	opts = append([]Option{WithTimings(testTimings())}, opts...)
	h.session = New(testIdentity(f), h.dialer, h.finder, h.store, opts...)
	t.Cleanup(h.session.Close)
	return h
}

// connect starts the session and brings it to Connected with report.
func (h *harness) connect(t *testing.T, report string) *fakeTransport {
	t.Helper()
	h.session.Start(context.Background())
	tr := h.dialer.next(t)
	tr.report(report)
	waitForPhase(t, h.session, PhaseConnected)
	return tr
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitForPhase(t *testing.T, s *Session, want Phase) ConnectionState {
	t.Helper()
	waitFor(t, "phase "+want.String(), func() bool { return s.State().Phase == want })
	return s.State()
}

// nextStatus returns the next StatusChanged event, skipping others.
func nextStatus(t *testing.T, s *Session) StatusChanged {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-s.Events():
			if !ok {
				t.Fatal("event channel closed")
			}
			if sc, ok := e.(StatusChanged); ok {
				return sc
			}
		case <-timeout:
			t.Fatal("timed out waiting for StatusChanged")
		}
	}
}

func drainEvents(s *Session) []Event {
	var events []Event
	for {
		select {
		case e, ok := <-s.Events():
			if !ok {
				return events
			}
			events = append(events, e)
		default:
			return events
		}
	}
}

func reconnectPending(s *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnect.pending()
}
