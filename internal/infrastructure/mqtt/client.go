package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/robotlan-core/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for robotlan.
//
// The same client serves two roles: the host-side bridge connection to a
// local broker (auto-reconnect, retained status topic, LWT) and the
// short-lived TLS session to a robot (no auto-reconnect, no status topic;
// the session package owns reconnection).
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are automatically restored on reconnection.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig
	conn    connectOptions

	// subscriptions tracks active subscriptions for re-subscription on reconnect.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Messages for one client are delivered in arrival order. Handlers should
// not block for extended periods.
//
// Returns:
//   - error: Logged but does not affect message acknowledgment
type MessageHandler func(topic string, payload []byte) error

// Connect establishes a connection to the MQTT broker described by cfg.
//
// The attempt is abandoned when ctx is cancelled or the connect timeout
// elapses, whichever comes first. In both cases the paho client is torn
// down before returning so no background retry survives the call.
//
// Parameters:
//   - ctx: Cancels the connection attempt
//   - cfg: Broker, credentials, and reconnect policy
//   - opts: Optional behaviour (status topic, timeouts, hooks)
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: Wraps ErrConnectionFailed and the underlying paho error
func Connect(ctx context.Context, cfg config.MQTTConfig, opts ...Option) (*Client, error) {
	co := defaultConnectOptions()
	for _, opt := range opts {
		opt(&co)
	}

	pahoOpts := buildClientOptions(cfg, co)
	if co.statusTopic != "" {
		configureLWT(pahoOpts, co.statusTopic, cfg.Broker.ClientID)
	}

	c := &Client{
		cfg:           cfg,
		conn:          co,
		options:       pahoOpts,
		subscriptions: make(map[string]subscription),
		onDisconnect:  co.onDisconnect,
		logger:        co.logger,
	}

	pahoOpts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	pahoOpts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})
	if co.defaultHandler != nil {
		pahoOpts.SetDefaultPublishHandler(c.wrapHandler(co.defaultHandler))
	}

	c.client = pahomqtt.NewClient(pahoOpts)
	token := c.client.Connect()

	timer := time.NewTimer(co.connectTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
	case <-timer.C:
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %w after %v", ErrConnectionFailed, ErrTimeout, co.connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs asynchronously, so mark the client
	// connected here as well for callers that check immediately.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return c, nil
}

func (c *Client) handleConnect() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	c.restoreSubscriptions()

	if c.conn.statusTopic != "" {
		c.client.Publish(c.conn.statusTopic, byte(c.cfg.QoS), true, buildOnlinePayload(c.cfg.Broker.ClientID))
	}

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions re-subscribes to all tracked topics after reconnect.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// Close gracefully disconnects from the broker.
//
// When a status topic is configured a graceful offline message is
// published first. Close is idempotent and never reports the connection
// loss callback, since the disconnect was requested.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.callbackMu.Lock()
	c.onDisconnect = nil
	c.onConnect = nil
	c.callbackMu.Unlock()

	if c.IsConnected() && c.conn.statusTopic != "" {
		token := c.client.Publish(c.conn.statusTopic, byte(c.cfg.QoS), true, buildOfflinePayload(c.cfg.Broker.ClientID))
		token.WaitTimeout(c.conn.publishTimeout)
	}

	c.client.Disconnect(c.conn.disconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}

// HealthCheck verifies the MQTT connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	if c.client == nil {
		return false
	}
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnect sets a callback to be invoked when connection is established.
// This is called on initial connect and on every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback to be invoked when connection is lost.
// Prefer WithOnDisconnect for sessions that must not miss an early loss.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for error and panic logging.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
