package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/robotlan-core/internal/infrastructure/config"
	"github.com/nerrad567/robotlan-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/robotlan-core/internal/robot"
)

// RobotPort is the TLS port robots accept sessions on.
const RobotPort = 8883

// robotQoS is used for every robot-side subscribe and publish.
const robotQoS = 0

// MQTTDialer dials robots over TLS MQTT. The zero value uses the robot
// defaults.
type MQTTDialer struct {
	Port           int
	ConnectTimeout time.Duration
	KeepAlive      time.Duration
	Logger         Logger
}

// MQTTDialerFromConfig converts the file configuration.
func MQTTDialerFromConfig(c config.SessionConfig, logger Logger) MQTTDialer {
	return MQTTDialer{
		Port:           c.Port,
		ConnectTimeout: c.ConnectTimeout(),
		KeepAlive:      c.KeepAlive(),
		Logger:         logger,
	}
}

// Dial connects to address and subscribes to the robot's state reports.
// Robot certificates are self-signed, so the channel is encrypted but the
// peer is not verified.
func (d MQTTDialer) Dial(ctx context.Context, address string, id robot.Identity, h Handlers) (Transport, error) {
	port := d.Port
	if port == 0 {
		port = RobotPort
	}
	keepAlive := d.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 5 * time.Second
	}

	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:               address,
			Port:               port,
			TLS:                true,
			InsecureSkipVerify: true,
			ClientID:           id.ID,
		},
		Auth: config.MQTTAuthConfig{
			Username: id.ID,
			Password: id.Secret,
		},
		QoS:       robotQoS,
		KeepAlive: int(keepAlive / time.Second),
		Reconnect: config.MQTTReconnectConfig{Disabled: true},
	}

	shadowTopic := mqtt.RobotShadowUpdate(id.ID)
	onMessage := func(topic string, payload []byte) error {
		if topic != shadowTopic {
			return nil
		}
		reported, err := extractReported(payload)
		if err != nil {
			return err
		}
		if reported != nil && h.OnReport != nil {
			h.OnReport(reported)
		}
		return nil
	}

	opts := []mqtt.Option{
		mqtt.WithConnectTimeout(d.ConnectTimeout),
		mqtt.WithDisconnectQuiesce(0),
		mqtt.WithDefaultHandler(onMessage),
	}
	if h.OnLost != nil {
		opts = append(opts, mqtt.WithOnDisconnect(h.OnLost))
	}
	logger := d.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	opts = append(opts, mqtt.WithLogger(logger))

	client, err := mqtt.Connect(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := client.Subscribe(shadowTopic, robotQoS, onMessage); err != nil {
		client.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("subscribing to %s: %w", shadowTopic, err)
	}

	return &mqttTransport{client: client, robotID: id.ID, logger: logger}, nil
}

type shadowUpdate struct {
	State struct {
		Reported json.RawMessage `json:"reported"`
	} `json:"state"`
}

// extractReported returns state.reported, or nil when the message has none.
func extractReported(payload []byte) ([]byte, error) {
	var u shadowUpdate
	if err := json.Unmarshal(payload, &u); err != nil {
		return nil, fmt.Errorf("decoding shadow update: %w", err)
	}
	if len(u.State.Reported) == 0 || string(u.State.Reported) == "null" {
		return nil, nil
	}
	return u.State.Reported, nil
}

type mqttTransport struct {
	client  *mqtt.Client
	robotID string
	logger  Logger
}

func (t *mqttTransport) SendCommand(cmd robot.Command, extra map[string]any) {
	payload, err := robot.CommandPayload(cmd, extra, time.Now())
	if err != nil {
		t.logger.Error("encoding command failed", "robot_id", t.robotID, "command", cmd, "error", err)
		return
	}
	t.publish(mqtt.RobotCommandTopic, payload)
}

func (t *mqttTransport) SendDelta(partial map[string]any) {
	payload, err := robot.DeltaPayload(partial)
	if err != nil {
		t.logger.Error("encoding delta failed", "robot_id", t.robotID, "error", err)
		return
	}
	t.publish(mqtt.RobotDeltaTopic, payload)
}

// publish logs and drops failures; a dead connection is reported through
// the connection-lost handler instead.
func (t *mqttTransport) publish(topic string, payload []byte) {
	if err := t.client.Publish(topic, payload, robotQoS, false); err != nil {
		t.logger.Warn("publish to robot failed", "robot_id", t.robotID, "topic", topic, "error", err)
	}
}

func (t *mqttTransport) Close() {
	t.client.Close() //nolint:errcheck // Close always returns nil
}
