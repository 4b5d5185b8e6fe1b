package registry

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/robotlan-core/internal/discovery"
	"github.com/nerrad567/robotlan-core/internal/infrastructure/config"
	"github.com/nerrad567/robotlan-core/internal/robot"
	"github.com/nerrad567/robotlan-core/internal/session"
)

// DisabledByConfig is the disable source for robots configured with
// enabled: false.
const DisabledByConfig = "configuration"

// storeTimeout bounds store writes made from the event pump.
const storeTimeout = 5 * time.Second

// Logger is the logging interface used by the coordinator.
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

// Discoverer finds robots on the network.
type Discoverer interface {
	session.Finder
	Sweep(ctx context.Context) ([]discovery.Robot, error)
}

// Coordinator owns the sessions of every configured robot.
//
// All public methods are thread-safe.
type Coordinator struct {
	store      Store
	discoverer Discoverer
	dialer     session.Dialer
	logger     Logger
	sessOpts   []session.Option

	mu       sync.RWMutex
	sessions map[string]*session.Session
	ctx      context.Context
	started  bool
	closed   bool
	pumps    sync.WaitGroup

	subMu   sync.Mutex
	subs    map[int]chan session.Event
	nextSub int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger. Sessions log through it too.
func WithLogger(l Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDialer replaces the robot transport dialer.
func WithDialer(d session.Dialer) Option {
	return func(c *Coordinator) { c.dialer = d }
}

// WithSessionOptions adds options applied to every session.
func WithSessionOptions(opts ...session.Option) Option {
	return func(c *Coordinator) { c.sessOpts = append(c.sessOpts, opts...) }
}

// NewCoordinator creates a coordinator with no robots.
func NewCoordinator(store Store, discoverer Discoverer, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:      store,
		discoverer: discoverer,
		dialer:     session.MQTTDialer{},
		logger:     noopLogger{},
		sessions:   make(map[string]*session.Session),
		subs:       make(map[int]chan session.Event),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add creates a session for id. Robots added after Start are started
// immediately.
func (c *Coordinator) Add(id robot.Identity, opts ...session.Option) (*session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("registry: coordinator closed")
	}
	if _, exists := c.sessions[id.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrRobotExists, id.ID)
	}

	all := append([]session.Option{session.WithLogger(c.logger)}, c.sessOpts...)
	all = append(all, opts...)
	s := session.New(id, c.dialer, c.discoverer, c.store, all...)
	c.sessions[id.ID] = s

	if c.started {
		c.startLocked(s)
	}
	return s, nil
}

// AddFromConfig adds every configured robot. A robot with an unknown
// family still gets a session, pinned in FatalError.
func (c *Coordinator) AddFromConfig(robots []config.RobotConfig) error {
	for _, rc := range robots {
		id := robot.Identity{ID: rc.ID, Secret: rc.Password, Family: robot.Family(strings.ToLower(rc.Family))}

		var opts []session.Option
		if rc.Address != "" {
			opts = append(opts, session.WithAddress(rc.Address))
		}
		s, err := c.Add(id, opts...)
		if err != nil {
			return err
		}
		if !rc.IsEnabled() {
			s.Disable(DisabledByConfig)
		}
		c.logger.Info("robot registered", "robot_id", rc.ID, "name", rc.Name, "family", rc.Family, "enabled", rc.IsEnabled())
	}
	return nil
}

// Start starts every session. ctx bounds all connection attempts.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started || c.closed {
		return
	}
	c.started = true
	c.ctx = ctx
	for _, id := range c.idsLocked() {
		c.startLocked(c.sessions[id])
	}
	c.logger.Info("coordinator started", "robots", len(c.sessions))
}

func (c *Coordinator) startLocked(s *session.Session) {
	c.pumps.Add(1)
	go c.pump(s)
	s.Start(c.ctx)
}

// pump forwards one session's events until the session closes.
func (c *Coordinator) pump(s *session.Session) {
	defer c.pumps.Done()
	for ev := range s.Events() {
		if sc, ok := ev.(session.StatusChanged); ok {
			c.saveStatus(sc)
		}
		c.publish(ev)
	}
}

func (c *Coordinator) saveStatus(sc session.StatusChanged) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	snap := StatusSnapshot{RobotID: sc.RobotID(), Status: sc.Status, Derived: sc.Derived, Time: sc.Time}
	if err := c.store.SaveStatus(ctx, snap); err != nil {
		c.logger.Warn("saving status failed", "robot_id", sc.RobotID(), "error", err)
	}
}

// Subscribe returns a channel receiving every session event and a
// function that ends the subscription. A subscriber that falls behind
// loses events rather than stalling the others.
func (c *Coordinator) Subscribe(buffer int) (<-chan session.Event, func()) {
	if buffer <= 0 {
		buffer = session.DefaultEventBuffer
	}
	ch := make(chan session.Event, buffer)

	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	if c.subs == nil {
		close(ch)
	} else {
		c.subs[id] = ch
	}
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

func (c *Coordinator) publish(ev session.Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for id, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			c.logger.Warn("subscriber falling behind, dropping event", "subscriber", id, "robot_id", ev.RobotID())
		}
	}
}

// Session returns the session for a robot id.
func (c *Coordinator) Session(id string) (*session.Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRobotNotFound, id)
	}
	return s, nil
}

// Sessions returns every session ordered by robot id.
func (c *Coordinator) Sessions() []*session.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*session.Session, 0, len(c.sessions))
	for _, id := range c.idsLocked() {
		out = append(out, c.sessions[id])
	}
	return out
}

func (c *Coordinator) idsLocked() []string {
	ids := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Discover runs one discovery sweep.
func (c *Coordinator) Discover(ctx context.Context) ([]discovery.Robot, error) {
	if c.discoverer == nil {
		return nil, discovery.ErrNoInterfaces
	}
	return c.discoverer.Sweep(ctx)
}

// LastStatus returns a robot's current status, or the last one stored
// when the robot has not reported since start.
func (c *Coordinator) LastStatus(ctx context.Context, id string) (StatusSnapshot, bool, error) {
	s, err := c.Session(id)
	if err != nil {
		return StatusSnapshot{}, false, err
	}
	if st, ok := s.Status(); ok {
		return StatusSnapshot{RobotID: id, Status: st, Derived: robot.Derive(st), Time: time.Now()}, true, nil
	}
	return c.store.LoadStatus(ctx, id)
}

// Store returns the backing store.
func (c *Coordinator) Store() Store {
	return c.store
}

// Close closes every session and ends every subscription.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sessions := make([]*session.Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	c.pumps.Wait()

	c.subMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subs = nil
	c.subMu.Unlock()

	c.logger.Info("coordinator stopped")
}
