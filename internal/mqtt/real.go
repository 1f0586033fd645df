package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/flow-sensor/internal/report"
)

const publishTimeout = 5 * time.Second

// RealPublisher publishes to an actual MQTT broker. While the connection is
// down, messages are held in a ring buffer and replayed on reconnect.
type RealPublisher struct {
	client paho.Client

	mu        sync.Mutex
	buf       *ringBuffer
	connected bool // true once the first connection succeeded
}

// NewRealPublisher creates a publisher for the given broker. Connecting
// happens in the background with retries, so this never blocks on the
// network; messages published before the first connection are buffered.
func NewRealPublisher(broker, clientID string) *RealPublisher {
	p := &RealPublisher{buf: newRingBuffer(bufferCapacity)}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(WillPayload()), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

// newPublisherWithClient wraps an existing client. Used by tests.
func newPublisherWithClient(client paho.Client) *RealPublisher {
	return &RealPublisher{client: client, buf: newRingBuffer(bufferCapacity)}
}

// onConnect announces a reconnection and replays buffered messages.
func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	reconnect := p.connected
	p.connected = true
	pending, dropped := p.buf.drain()
	p.mu.Unlock()

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		if err := p.send(TopicSystem, 1, false, payload); err != nil {
			log.Printf("mqtt: publish reconnected event: %v", err)
		}
	}

	if dropped > 0 {
		log.Printf("mqtt: buffer overflowed while offline, dropped %d oldest messages", dropped)
	}
	if len(pending) > 0 {
		log.Printf("mqtt: connected, replaying %d buffered messages", len(pending))
	}
	for _, m := range pending {
		if err := p.send(m.topic, m.qos, m.retained, m.payload); err != nil {
			log.Printf("mqtt: replay to %s: %v", m.topic, err)
		}
	}
}

// Publish sends a flow reading to the MQTT broker.
func (p *RealPublisher) Publish(reading report.Reading) error {
	payload, err := FormatPayload(reading)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(Topic, 0, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events
	return p.publish(TopicSystem, 1, event.Retained, payload)
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}
	return p.send(topic, qos, retained, payload)
}

func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
