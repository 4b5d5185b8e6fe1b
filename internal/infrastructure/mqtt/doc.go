// Package mqtt provides MQTT client connectivity for robotlan.
//
// This package manages:
//   - TLS sessions to robots (self-signed certificates, MQTT 3.1.1)
//   - The host-side bridge connection with auto-reconnect and LWT
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//
// # Architecture
//
// Each robot runs its own MQTT broker on port 8883. A robot session is one
// client connected to that broker with the robot id as client id and user
// name. Reconnection for robot sessions is owned by the session package, so
// those connections disable paho's auto-reconnect.
//
//	robotlan ── TLS 8883 ──> robot broker
//	robotlan ── TCP 1883 ──> home broker (optional bridge)
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg,
//	    mqtt.WithConnectTimeout(10*time.Second),
//	    mqtt.WithOnDisconnect(onLost),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.RobotShadowUpdate(id), 0, handle)
//	client.Publish(mqtt.RobotCommandTopic, payload, 0, false)
package mqtt
