package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/robotlan-core/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is used when cfg.KeepAlive is unset.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12

	// protocolVersion pins MQTT 3.1.1. Leaving it unset makes paho retry
	// with 3.1 on refusal, which doubles every failed robot connect.
	protocolVersion = 4
)

// Option customises a single Connect call.
type Option func(*connectOptions)

type connectOptions struct {
	statusTopic       string
	connectTimeout    time.Duration
	publishTimeout    time.Duration
	disconnectQuiesce uint
	onDisconnect      func(err error)
	defaultHandler    MessageHandler
	logger            Logger
}

func defaultConnectOptions() connectOptions {
	return connectOptions{
		connectTimeout:    defaultConnectTimeout,
		publishTimeout:    defaultPublishTimeout,
		disconnectQuiesce: defaultDisconnectQuiesce,
	}
}

// WithStatusTopic enables the retained online/offline status messages and
// the Last Will on topic.
func WithStatusTopic(topic string) Option {
	return func(o *connectOptions) { o.statusTopic = topic }
}

// WithConnectTimeout overrides the 10s connect timeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *connectOptions) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}

// WithPublishTimeout overrides how long Publish waits for an acknowledgment.
func WithPublishTimeout(d time.Duration) Option {
	return func(o *connectOptions) {
		if d > 0 {
			o.publishTimeout = d
		}
	}
}

// WithDisconnectQuiesce sets the quiesce period in milliseconds used by Close.
func WithDisconnectQuiesce(ms uint) Option {
	return func(o *connectOptions) { o.disconnectQuiesce = ms }
}

// WithOnDisconnect registers the connection-lost callback before the
// connection is opened, so a loss immediately after CONNACK is not missed.
func WithOnDisconnect(fn func(err error)) Option {
	return func(o *connectOptions) { o.onDisconnect = fn }
}

// WithDefaultHandler receives messages that match no subscription. Robots
// push state reports whether or not the client subscribed.
func WithDefaultHandler(h MessageHandler) Option {
	return func(o *connectOptions) { o.defaultHandler = h }
}

// WithLogger sets the handler error logger before connecting.
func WithLogger(l Logger) Option {
	return func(o *connectOptions) { o.logger = l }
}

// buildClientOptions creates paho MQTT options from config.
func buildClientOptions(cfg config.MQTTConfig, co connectOptions) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	opts.SetClientID(cfg.Broker.ClientID)
	opts.SetProtocolVersion(protocolVersion)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)

	if cfg.Reconnect.Disabled {
		opts.SetAutoReconnect(false)
		opts.SetConnectRetry(false)
	} else {
		opts.SetAutoReconnect(true)
		opts.SetConnectRetry(true)
		opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
		opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	}

	opts.SetConnectTimeout(co.connectTimeout)

	keepAlive := defaultKeepAlive
	if cfg.KeepAlive > 0 {
		keepAlive = time.Duration(cfg.KeepAlive) * time.Second
	}
	opts.SetKeepAlive(keepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
			// Robots present self-signed certificates.
			InsecureSkipVerify: cfg.Broker.InsecureSkipVerify, //nolint:gosec
		})
	}

	return opts
}

// configureLWT sets up Last Will and Testament for offline detection.
//
// QoS: 1, Retained: true (new subscribers see last status)
func configureLWT(opts *pahomqtt.ClientOptions, topic, clientID string) {
	willPayload := fmt.Sprintf(
		`{"status":"offline","client_id":"%s","reason":"unexpected_disconnect","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)

	opts.SetWill(topic, willPayload, 1, true)
}

func buildOnlinePayload(clientID string) string {
	return fmt.Sprintf(
		`{"status":"online","client_id":"%s","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)
}

func buildOfflinePayload(clientID string) string {
	return fmt.Sprintf(
		`{"status":"offline","client_id":"%s","reason":"graceful_shutdown","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)
}
