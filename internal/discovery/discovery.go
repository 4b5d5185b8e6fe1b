package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/robotlan-core/internal/infrastructure/config"
)

// ProbePayload is the literal request robots answer.
const ProbePayload = "irobotmcs"

// DefaultPort is the UDP port robots listen on for probes.
const DefaultPort = 5678

// readBufferSize comfortably fits a reply.
const readBufferSize = 2048

// Config holds sweep timing.
type Config struct {
	Port int

	// ProbeInterval is the gap between broadcasts on one interface.
	ProbeInterval time.Duration

	// SweepDuration is how long broadcasts continue.
	SweepDuration time.Duration

	// ReceiveTimeout bounds how long each socket listens, and how long
	// Probe waits for its single reply.
	ReceiveTimeout time.Duration

	// FindTimeout bounds FindRobot.
	FindTimeout time.Duration
}

// DefaultConfig returns the timings robots are known to work with.
func DefaultConfig() Config {
	return Config{
		Port:           DefaultPort,
		ProbeInterval:  time.Second,
		SweepDuration:  4 * time.Second,
		ReceiveTimeout: 5 * time.Second,
		FindTimeout:    5 * time.Second,
	}
}

// FromConfig converts the file configuration.
func FromConfig(c config.DiscoveryConfig) Config {
	return Config{
		Port:           c.Port,
		ProbeInterval:  c.ProbeInterval(),
		SweepDuration:  c.SweepDuration(),
		ReceiveTimeout: c.ReceiveTimeout(),
		FindTimeout:    c.FindTimeout(),
	}
}

// Target is one local address to broadcast from.
type Target struct {
	Local     net.IP
	Broadcast net.IP
}

// Logger is the logging interface used by the discoverer.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Discoverer runs sweeps and probes. It is safe for concurrent use; each
// call opens and closes its own sockets.
type Discoverer struct {
	cfg     Config
	logger  Logger
	targets func() ([]Target, error)
}

// Option customises a Discoverer.
type Option func(*Discoverer)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(d *Discoverer) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithTargets replaces interface enumeration with a fixed target list.
func WithTargets(targets ...Target) Option {
	return func(d *Discoverer) {
		d.targets = func() ([]Target, error) { return targets, nil }
	}
}

// New creates a Discoverer.
func New(cfg Config, opts ...Option) *Discoverer {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	d := &Discoverer{
		cfg:     cfg,
		logger:  noopLogger{},
		targets: InterfaceTargets,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// InterfaceTargets lists the IPv4 address and subnet broadcast address of
// every interface that is up and is neither loopback nor point-to-point.
func InterfaceTargets() ([]Target, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}

	var targets []Target
	for _, iface := range ifaces {
		if !broadcastCapable(iface.Flags) {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if t, ok := targetFor(ipNet); ok {
				targets = append(targets, t)
			}
		}
	}
	return targets, nil
}

func broadcastCapable(flags net.Flags) bool {
	return flags&net.FlagUp != 0 && flags&(net.FlagLoopback|net.FlagPointToPoint) == 0
}

func targetFor(ipNet *net.IPNet) (Target, bool) {
	ip := ipNet.IP.To4()
	if ip == nil {
		return Target{}, false
	}
	mask := ipNet.Mask
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	if len(mask) != net.IPv4len {
		return Target{}, false
	}
	broadcast := make(net.IP, net.IPv4len)
	for i := range broadcast {
		broadcast[i] = ip[i] | ^mask[i]
	}
	return Target{Local: ip, Broadcast: broadcast}, true
}

// Stream runs one sweep and delivers each robot once, in arrival order.
// The channel is closed when the sweep ends or ctx is cancelled.
func (d *Discoverer) Stream(ctx context.Context) (<-chan Robot, error) {
	targets, err := d.targets()
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, ErrNoInterfaces
	}

	out := make(chan Robot)
	seen := &seenSet{ids: make(map[string]struct{})}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range targets {
		g.Go(func() error {
			d.sweepTarget(gctx, t, seen, out)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(out)
	}()

	return out, nil
}

// Sweep runs one sweep and returns every robot that answered.
func (d *Discoverer) Sweep(ctx context.Context) ([]Robot, error) {
	ch, err := d.Stream(ctx)
	if err != nil {
		return nil, err
	}
	var robots []Robot
	for r := range ch {
		robots = append(robots, r)
	}
	return robots, nil
}

// FindRobot sweeps until a robot with id answers or FindTimeout elapses.
func (d *Discoverer) FindRobot(ctx context.Context, id string) (Robot, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.FindTimeout)
	defer cancel()

	ch, err := d.Stream(ctx)
	if err != nil {
		return Robot{}, err
	}
	for r := range ch {
		if r.ID == id {
			return r, nil
		}
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return Robot{}, err
	}
	return Robot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Probe sends the probe to one address and returns the first valid reply.
func (d *Discoverer) Probe(ctx context.Context, address string) (Robot, error) {
	ip := net.ParseIP(address)
	if ip == nil {
		addrs, err := net.DefaultResolver.LookupIP(ctx, "ip4", address)
		if err != nil || len(addrs) == 0 {
			return Robot{}, fmt.Errorf("%w: resolving %q", ErrNoReply, address)
		}
		ip = addrs[0]
	}

	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: ip, Port: d.cfg.Port})
	if err != nil {
		return Robot{}, fmt.Errorf("dialing %s: %w", address, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.SetReadDeadline(time.Now().Add(d.cfg.ReceiveTimeout)); err != nil {
		return Robot{}, fmt.Errorf("setting deadline: %w", err)
	}
	if _, err := conn.Write([]byte(ProbePayload)); err != nil {
		return Robot{}, fmt.Errorf("%w: %w", ErrNoReply, err)
	}

	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Robot{}, ctxErr
			}
			return Robot{}, fmt.Errorf("%w from %s: %w", ErrNoReply, address, err)
		}
		robot, err := ParseReply(buf[:n])
		if err != nil {
			d.logger.Debug("ignoring discovery reply", "address", address, "error", err)
			continue
		}
		if robot.Address == "" {
			robot.Address = ip.String()
		}
		return robot, nil
	}
}

// sweepTarget broadcasts from one local address and reads replies until
// the receive timeout or cancellation. Bind failures skip the target.
func (d *Discoverer) sweepTarget(ctx context.Context, t Target, seen *seenSet, out chan<- Robot) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: t.Local, Port: 0})
	if err != nil {
		d.logger.Debug("skipping interface", "local", t.Local.String(), "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.SetReadDeadline(time.Now().Add(d.cfg.ReceiveTimeout)); err != nil {
		d.logger.Warn("setting discovery deadline", "local", t.Local.String(), "error", err)
		return
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.broadcast(ctx, conn, &net.UDPAddr{IP: t.Broadcast, Port: d.cfg.Port})
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	buf := make([]byte, readBufferSize)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		robot, err := ParseReply(buf[:n])
		if err != nil {
			d.logger.Debug("ignoring discovery reply", "from", from.String(), "error", err)
			continue
		}
		if robot.Address == "" {
			robot.Address = from.IP.String()
		}
		if !seen.add(robot.ID) {
			continue
		}
		select {
		case out <- robot:
		case <-ctx.Done():
			return
		}
	}
}

func (d *Discoverer) broadcast(ctx context.Context, conn *net.UDPConn, to *net.UDPAddr) {
	deadline := time.Now().Add(d.cfg.SweepDuration)
	ticker := time.NewTicker(d.cfg.ProbeInterval)
	defer ticker.Stop()

	payload := []byte(ProbePayload)
	for {
		if _, err := conn.WriteToUDP(payload, to); err != nil {
			d.logger.Debug("discovery broadcast failed", "to", to.String(), "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if now.After(deadline) {
				return
			}
		}
	}
}

// seenSet deduplicates ids across all sockets of one sweep.
type seenSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func (s *seenSet) add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}
