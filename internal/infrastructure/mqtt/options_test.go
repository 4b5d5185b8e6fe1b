package mqtt

import (
	"testing"
	"time"

	"github.com/nerrad567/robotlan-core/internal/infrastructure/config"
)

func TestBuildClientOptions_RobotSession(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:               "192.168.1.50",
			Port:               8883,
			TLS:                true,
			InsecureSkipVerify: true,
			ClientID:           "ABC123",
		},
		Auth:      config.MQTTAuthConfig{Username: "ABC123", Password: "secret"},
		KeepAlive: 5,
		Reconnect: config.MQTTReconnectConfig{Disabled: true},
	}
	co := defaultConnectOptions()
	WithConnectTimeout(3 * time.Second)(&co)

	opts := buildClientOptions(cfg, co)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://192.168.1.50:8883" {
		t.Errorf("Servers = %v, want [ssl://192.168.1.50:8883]", opts.Servers)
	}
	if opts.ClientID != "ABC123" || opts.Username != "ABC123" || opts.Password != "secret" {
		t.Errorf("credentials = (%q, %q, %q), want ABC123/ABC123/secret", opts.ClientID, opts.Username, opts.Password)
	}
	if opts.ProtocolVersion != protocolVersion {
		t.Errorf("ProtocolVersion = %d, want %d", opts.ProtocolVersion, protocolVersion)
	}
	if opts.AutoReconnect || opts.ConnectRetry {
		t.Error("expected auto reconnect and connect retry to be disabled")
	}
	if opts.KeepAlive != 5 {
		t.Errorf("KeepAlive = %d, want 5", opts.KeepAlive)
	}
	if opts.ConnectTimeout != 3*time.Second {
		t.Errorf("ConnectTimeout = %v, want 3s", opts.ConnectTimeout)
	}
	if opts.TLSConfig == nil || !opts.TLSConfig.InsecureSkipVerify || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Errorf("TLSConfig = %+v, want insecure TLS >= 1.2", opts.TLSConfig)
	}
	if opts.WillEnabled {
		t.Error("robot sessions must not carry a Last Will")
	}
}

func TestBuildClientOptions_Bridge(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker:    config.MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "robotlan"},
		Reconnect: config.MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
	}
	opts := buildClientOptions(cfg, defaultConnectOptions())
	configureLWT(opts, Topics{}.BridgeStatus(), cfg.Broker.ClientID)

	if opts.Servers[0].String() != "tcp://localhost:1883" {
		t.Errorf("Servers[0] = %v, want tcp://localhost:1883", opts.Servers[0])
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
	if opts.Username != "" {
		t.Errorf("Username = %q, want empty", opts.Username)
	}
	if opts.KeepAlive != int64(defaultKeepAlive/time.Second) {
		t.Errorf("KeepAlive = %d, want default", opts.KeepAlive)
	}
	if !opts.WillEnabled || opts.WillTopic != "robotlan/bridge/status" || !opts.WillRetained {
		t.Errorf("will = (%v, %q, %v), want retained will on robotlan/bridge/status",
			opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
}
