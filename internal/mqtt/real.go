package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/button-sensor/internal/logic"
)

const (
	// ClientID identifies the daemon to the broker.
	ClientID = "button-sensor"

	publishTimeout = 5 * time.Second
	outboxCapacity = 256
)

// client is the subset of paho.Client the publisher uses.
type client interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are held in a bounded outbox and replayed in order
// once it comes back.
type RealPublisher struct {
	client client
	names  NameFunc

	// mu orders direct publishes against outbox replay.
	mu     sync.Mutex
	outbox *outbox
}

// NewRealPublisher starts connecting to broker in the background and returns
// immediately. The broker retains an OFFLINE system event as the will.
func NewRealPublisher(broker string, names NameFunc) *RealPublisher {
	p := &RealPublisher{
		names:  names,
		outbox: newOutbox(outboxCapacity),
	}

	will, _ := FormatSystemPayload(SystemEvent{Event: "OFFLINE"})
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(func(paho.Client) {
			log.Printf("mqtt: connected to %s", broker)
			p.flush()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	c := paho.NewClient(opts)
	p.client = c
	// With ConnectRetry the token only completes once connected.
	c.Connect()
	return p
}

// Publish sends a button event (QoS 0, not retained).
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event, p.names)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.send(outboxMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a lifecycle event (QoS 1).
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(outboxMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) send(msg outboxMsg) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.outbox.push(msg)
		p.mu.Unlock()
		return nil
	}
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	p.mu.Unlock()

	return waitToken(token, msg.topic)
}

// flush replays the outbox. Called on every (re)connect.
func (p *RealPublisher) flush() {
	p.mu.Lock()
	msgs, dropped := p.outbox.drain()
	tokens := make([]paho.Token, len(msgs))
	for i, m := range msgs {
		tokens[i] = p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	}
	p.mu.Unlock()

	if dropped > 0 {
		log.Printf("mqtt: %d messages lost while offline", dropped)
	}
	if len(msgs) > 0 {
		log.Printf("mqtt: replaying %d buffered messages", len(msgs))
	}
	for i, token := range tokens {
		if err := waitToken(token, msgs[i].topic); err != nil {
			log.Printf("mqtt: replay: %v", err)
		}
	}
}

func waitToken(token paho.Token, topic string) error {
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outbox.len()
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
