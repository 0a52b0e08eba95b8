package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

// Config configures the real publisher.
type Config struct {
	Broker   string
	Prefix   string
	ClientID string // empty derives a unique id
	// BufferSize is how many messages are kept while disconnected.
	BufferSize int
	// CommandRate and CommandBurst bound accepted commands per second.
	CommandRate  float64
	CommandBurst int
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topics Topics
	log    zerolog.Logger

	filter   *CommandFilter
	commands chan<- Command

	mu  sync.Mutex
	buf *outbox
}

var errNotConnected = errors.New("not connected")

// NewRealPublisher creates a publisher for the given broker. Valid commands
// received on the command topic are delivered on commands without blocking.
// The broker does not need to be reachable yet; the client keeps retrying.
func NewRealPublisher(cfg Config, commands chan<- Command, log zerolog.Logger) (*RealPublisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: broker address is required")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "irrigation-controller-" + uuid.NewString()[:8]
	}
	bufSize := cfg.BufferSize
	if bufSize <= 0 {
		bufSize = 100
	}

	p := &RealPublisher{
		topics:   NewTopics(cfg.Prefix),
		log:      log.With().Str("component", "mqtt").Logger(),
		filter:   NewCommandFilter(cfg.CommandRate, cfg.CommandBurst),
		commands: commands,
		buf:      newOutbox(bufSize),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(p.topics.System, willPayload(), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warn().Err(err).Msg("connection lost")
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("connect to broker: %w", token.Error())
	}
	if !p.client.IsConnected() {
		p.log.Warn().Str("broker", cfg.Broker).Msg("broker not reachable yet, buffering")
	}
	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.log.Info().Msg("connected")
	if p.commands != nil {
		c.Subscribe(p.topics.Command, 1, p.handleCommand)
	}

	p.mu.Lock()
	pending := p.buf.drainAll()
	p.mu.Unlock()
	for _, m := range pending {
		if err := p.send(m); err != nil {
			p.log.Warn().Err(err).Str("topic", m.topic).Msg("replay failed")
		}
	}
	if len(pending) > 0 {
		p.log.Info().Int("count", len(pending)).Msg("replayed buffered messages")
	}
}

func (p *RealPublisher) handleCommand(_ paho.Client, msg paho.Message) {
	if !p.filter.Allow(time.Now()) {
		p.log.Warn().Msg("command rate exceeded, dropping")
		return
	}
	cmd, err := ParseCommand(msg.Payload())
	if err != nil {
		p.log.Warn().Err(err).Msg("rejected command")
		return
	}
	select {
	case p.commands <- cmd:
	default:
		p.log.Warn().Str("action", string(cmd.Action)).Msg("command queue full, dropping")
	}
}

func (p *RealPublisher) send(m bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		return errNotConnected
	}
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	return token.Error()
}

// publish sends m, or buffers it when the broker cannot be reached.
func (p *RealPublisher) publish(m bufferedMsg) error {
	err := p.send(m)
	if err == nil {
		return nil
	}
	p.mu.Lock()
	first := p.buf.push(m)
	p.mu.Unlock()
	if first {
		p.log.Warn().Msg("outbox full, evicting queued messages")
	}
	return fmt.Errorf("publish %s: %w", m.topic, err)
}

// Publish sends a controller event to the events topic.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: p.topics.Events, payload: payload})
}

// Record sends a run log entry to the log topic. It implements logic.LogSink.
func (p *RealPublisher) Record(_ context.Context, event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: p.topics.Log, payload: payload, qos: 1})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) so shutdown events are delivered
	return p.publish(bufferedMsg{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a reconnect.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
