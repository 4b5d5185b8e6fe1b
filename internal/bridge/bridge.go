package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/robotlan-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/robotlan-core/internal/robot"
	"github.com/nerrad567/robotlan-core/internal/session"
)

// ErrBadTopic is returned for messages on topics the bridge does not serve.
var ErrBadTopic = errors.New("bridge: unrecognised topic")

// Client is the broker connection. *mqtt.Client satisfies it.
type Client interface {
	PublishJSON(topic string, v any, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Robot is the part of a session the bridge drives.
type Robot interface {
	SendCommand(cmd robot.Command, extra map[string]any) error
	SetOption(opt robot.Option, value any) error
	Control(target robot.RobotStatus) error
}

// Robots looks up a robot by id.
type Robots interface {
	Robot(id string) (Robot, error)
}

// SessionSource is anything that hands out sessions by id, such as
// *registry.Coordinator.
type SessionSource interface {
	Session(id string) (*session.Session, error)
}

// Sessions adapts a SessionSource to Robots.
func Sessions(src SessionSource) Robots {
	return sessionRobots{src}
}

type sessionRobots struct{ src SessionSource }

func (r sessionRobots) Robot(id string) (Robot, error) {
	s, err := r.src.Session(id)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Bridge publishes session events and relays commands.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	client Client
	robots Robots
	topics mqtt.Topics
	qos    byte
	logger Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithTopicPrefix replaces the "robotlan" topic root.
func WithTopicPrefix(prefix string) Option {
	return func(b *Bridge) { b.topics.Prefix = prefix }
}

// WithQoS sets the QoS used for publishes and subscriptions.
func WithQoS(qos byte) Option {
	return func(b *Bridge) { b.qos = qos }
}

// WithLogger sets the bridge logger.
func WithLogger(l Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a bridge. Call Start to accept commands.
func New(client Client, robots Robots, opts ...Option) *Bridge {
	b := &Bridge{
		client: client,
		robots: robots,
		qos:    1,
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Topics returns the topic builder in use.
func (b *Bridge) Topics() mqtt.Topics {
	return b.topics
}

// Start subscribes to the command and option topics of every robot.
// Subscriptions survive broker reconnects.
func (b *Bridge) Start() error {
	if err := b.client.Subscribe(b.topics.AllCommands(), b.qos, b.handleMessage); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	if err := b.client.Subscribe(b.topics.AllSets(), b.qos, b.handleMessage); err != nil {
		return fmt.Errorf("subscribing to options: %w", err)
	}
	return nil
}

// Stop drops the command and option subscriptions. Events passed to
// Handle are still published.
func (b *Bridge) Stop() error {
	return errors.Join(
		b.client.Unsubscribe(b.topics.AllCommands()),
		b.client.Unsubscribe(b.topics.AllSets()),
	)
}

// Handle publishes one session event. Publish failures are logged; the
// retained topics are refreshed by the next event.
func (b *Bridge) Handle(ev session.Event) {
	var (
		topic    string
		payload  any
		retained bool
	)
	switch e := ev.(type) {
	case session.ConnectionChanged:
		topic, payload, retained = b.topics.Connection(e.RobotID()), connectionMessage(e), true
	case session.StatusChanged:
		topic, payload, retained = b.topics.Status(e.RobotID()), statusMessage(e), true
	case session.UnexpectedValue:
		topic = b.topics.Unexpected(e.RobotID())
		payload = UnexpectedMessage{RobotID: e.RobotID(), Timestamp: e.Time.UTC(), Field: e.Field, Value: e.Value}
	default:
		return
	}

	if err := b.client.PublishJSON(topic, payload, b.qos, retained); err != nil {
		b.logger.Warn("bridge publish failed", "topic", topic, "error", err)
	}
}

// handleMessage dispatches a command or option message.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	robotID, kind, rest, ok := b.topics.ParseRobotTopic(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrBadTopic, topic)
	}

	r, err := b.robots.Robot(robotID)
	if err != nil {
		return err
	}

	switch {
	case kind == "command" && rest == "":
		var msg CommandMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decoding command: %w", err)
		}
		if msg.Target != "" && msg.Command == "" {
			target, ok := robot.ParseRobotStatus(msg.Target)
			if !ok {
				return fmt.Errorf("decoding command: unknown target %q", msg.Target)
			}
			b.logger.Debug("bridge control", "robot_id", robotID, "target", target)
			return r.Control(target)
		}
		if msg.Command == "" {
			return fmt.Errorf("decoding command: missing command")
		}
		b.logger.Debug("bridge command", "robot_id", robotID, "command", msg.Command)
		return r.SendCommand(robot.Command(msg.Command), msg.Params)

	case kind == "set" && rest != "":
		opt, err := robot.ParseOption(rest)
		if err != nil {
			return err
		}
		var msg SetMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decoding option value: %w", err)
		}
		b.logger.Debug("bridge option", "robot_id", robotID, "option", opt)
		return r.SetOption(opt, msg.Value)

	default:
		return fmt.Errorf("%w: %s", ErrBadTopic, topic)
	}
}
