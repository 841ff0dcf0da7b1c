package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	outboxLimit    = 100
	publishTimeout = 5 * time.Second
)

// RealClient publishes to and receives from an actual MQTT broker.
// Publishes made while disconnected are kept in an outbox and replayed on
// the next connect.
type RealClient struct {
	client  paho.Client
	topics  Topics
	handler RemoteHandler
	now     func() time.Time

	mu        sync.Mutex
	outbox    *outbox
	connected bool // set after the first successful connect
}

// NewRealClient creates a client for broker and starts connecting in the
// background. handler may be nil to disable the inbound topics.
func NewRealClient(broker, clientID string, topics Topics, handler RemoteHandler) *RealClient {
	c := &RealClient{
		topics:  topics,
		handler: handler,
		now:     time.Now,
		outbox:  newOutbox(outboxLimit),
	}

	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	})

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetOrderMatters(false).
		SetBinaryWill(topics.System, will, 1, true).
		SetOnConnectHandler(func(paho.Client) { c.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	c.client = paho.NewClient(opts)
	c.client.Connect()
	return c
}

// newClientWith wraps an existing paho client. Used by tests.
func newClientWith(client paho.Client, topics Topics, handler RemoteHandler) *RealClient {
	return &RealClient{
		client:  client,
		topics:  topics,
		handler: handler,
		now:     time.Now,
		outbox:  newOutbox(outboxLimit),
	}
}

// onConnect subscribes to the inbound topics, replays the outbox and, on
// reconnects, announces RECONNECTED.
func (c *RealClient) onConnect() {
	if c.handler != nil {
		for _, topic := range []string{c.topics.Command, c.topics.Config, c.topics.Listener} {
			tok := c.client.Subscribe(topic, 1, c.onMessage)
			if tok.WaitTimeout(publishTimeout) && tok.Error() != nil {
				log.Printf("mqtt: subscribe %s: %v", topic, tok.Error())
			}
		}
	}

	c.mu.Lock()
	pending, dropped := c.outbox.take()
	reconnect := c.connected
	c.connected = true
	c.mu.Unlock()

	if reconnect {
		log.Printf("mqtt: reconnected, replaying %d messages (%d dropped)", len(pending), dropped)
	} else {
		log.Printf("mqtt: connected")
	}
	for _, m := range pending {
		if err := c.send(m); err != nil {
			log.Printf("mqtt: replay to %s: %v", m.topic, err)
		}
	}
	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: c.now(), Event: "RECONNECTED"})
		if err := c.send(message{topic: c.topics.System, payload: payload, qos: 1}); err != nil {
			log.Printf("mqtt: publish reconnected: %v", err)
		}
	}
}

func (c *RealClient) onMessage(_ paho.Client, m paho.Message) {
	if err := Dispatch(c.handler, c.topics, m.Topic(), m.Payload()); err != nil {
		log.Printf("mqtt: dropped message on %s: %v", m.Topic(), err)
	}
}

// IsConnected reports whether the broker connection is up.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Publish sends a channel event.
func (c *RealClient) Publish(event ChannelEvent) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return c.publish(message{topic: c.topics.Events, payload: payload})
}

// PublishSystem sends a system lifecycle event.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events
	return c.publish(message{topic: c.topics.System, payload: payload, qos: 1, retained: event.Retained})
}

func (c *RealClient) publish(m message) error {
	if !c.client.IsConnectionOpen() {
		c.mu.Lock()
		c.outbox.add(m)
		c.mu.Unlock()
		return nil
	}
	return c.send(m)
}

func (c *RealClient) send(m message) error {
	token := c.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Pending returns the number of messages waiting for a connection.
func (c *RealClient) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outbox.len()
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
