package eventbus

import (
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/knxnet/internal/config"
	"github.com/nerrad567/knxnet/internal/session"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	defaultQoS            = byte(1)

	topicPrefix = "knxnet/event"
	statusTopic = "knxnet/status"
)

// Logger is the optional logging interface accepted by Publisher.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Publisher forwards session.Event values to an MQTT broker, one
// message per event under "knxnet/event/<topic>".
type Publisher struct {
	client pahomqtt.Client
	logger Logger

	connected bool
	mu        sync.RWMutex
}

// Connect dials the broker named by cfg.BrokerURL. Returns ErrDisabled
// if the publisher is not enabled.
func Connect(cfg config.EventPublisherConfig, logger Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID("knxnet").
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(defaultConnectTimeout).
		SetWill(statusTopic, `{"status":"offline"}`, defaultQoS, true)

	p := &Publisher{logger: logger}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		p.setConnected(true)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		p.setConnected(false)
		p.logWarn("eventbus connection lost", "error", err)
	})

	p.client = pahomqtt.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	p.setConnected(true)

	return p, nil
}

// Run publishes every event from events until the channel closes. The
// caller owns events; session.Subscribe already closes its channel
// when the session does.
func (p *Publisher) Run(events <-chan session.Event) {
	for ev := range events {
		p.Publish(ev)
	}
}

// Publish sends a single event to "knxnet/event/<topic>", logging (but
// not returning) any failure so callers can fire-and-forget.
func (p *Publisher) Publish(ev session.Event) {
	if err := p.publish(ev); err != nil {
		p.logWarn("failed to publish event", "topic", ev.Topic(), "error", err)
	}
}

func (p *Publisher) publish(ev session.Event) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}
	topic := fmt.Sprintf("%s/%s", topicPrefix, ev.Topic())
	payload := encodeEvent(ev)
	token := p.client.Publish(topic, defaultQoS, false, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("publish timeout after %v", defaultPublishTimeout)
	}
	return token.Error()
}

// Close publishes a graceful offline status and disconnects.
func (p *Publisher) Close() error {
	if p.client == nil {
		return nil
	}
	if p.IsConnected() {
		token := p.client.Publish(statusTopic, defaultQoS, true, `{"status":"offline","reason":"shutdown"}`)
		token.WaitTimeout(defaultPublishTimeout)
	}
	p.client.Disconnect(1000)
	p.setConnected(false)
	return nil
}

// IsConnected reports the last known broker connection state.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected && p.client.IsConnected()
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func (p *Publisher) logWarn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
