package mqtt

import (
	"encoding/json"
	"fmt"
	"slices"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// maxPayloadSize caps outgoing messages. Robot state reports and bridge
// messages are a few kilobytes at most.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic and waits for the broker to acknowledge
// it (QoS 1 and 2) or for the write to complete (QoS 0).
//
// Robot sessions publish mission commands to RobotCommandTopic and option
// changes to RobotDeltaTopic at QoS 0. The bridge publishes retained
// connection and status messages so late subscribers see current state.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload is %d bytes, limit %d", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return c.await(c.client.Publish(topic, qos, retained, payload), ErrPublishFailed)
}

// PublishJSON encodes v and publishes it.
func (c *Client) PublishJSON(topic string, v any, qos byte, retained bool) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %w", ErrPublishFailed, err)
	}
	return c.Publish(topic, data, qos, retained)
}

// Subscribe registers handler for topic, which may contain + and #
// wildcards. The subscription is restored after every reconnect.
//
// A robot session subscribes to its shadow update topic; the bridge
// subscribes to AllCommands and AllSets.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subscriptions[topic] = subscription{topic: topic, qos: qos, handler: handler}
	c.subMu.Unlock()

	if err := c.await(c.client.Subscribe(topic, qos, c.wrapHandler(handler)), ErrSubscribeFailed); err != nil {
		c.forget(topic)
		return err
	}
	return nil
}

// Unsubscribe drops the subscription for topic, which must match the
// string passed to Subscribe. Messages already in flight may still arrive.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.forget(topic)
	return c.await(c.client.Unsubscribe(topic), ErrUnsubscribeFailed)
}

// Subscriptions returns the tracked topic filters, sorted.
func (c *Client) Subscriptions() []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	topics := make([]string, 0, len(c.subscriptions))
	for topic := range c.subscriptions {
		topics = append(topics, topic)
	}
	slices.Sort(topics)
	return topics
}

func (c *Client) forget(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}

// await waits up to the publish timeout for token and wraps any failure
// in kind.
func (c *Client) await(token pahomqtt.Token, kind error) error {
	if !token.WaitTimeout(c.conn.publishTimeout) {
		return fmt.Errorf("%w: %w after %v", kind, ErrTimeout, c.conn.publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return nil
}

func validate(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	return nil
}

