package session

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-switch/internal/infrastructure/mqtt"
)

// State is the connection state of the Manager.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// defaultMaxPump bounds the deliveries dispatched in one Tick.
const defaultMaxPump = 64

// Transport is the broker connection the Manager drives.
// *mqtt.Transport satisfies it.
type Transport interface {
	Connect(ctx context.Context) error
	Subscribe(topic string, qos byte) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Poll() (mqtt.Message, bool, error)
	Close()
}

// Dispatcher receives inbound messages. *router.Router satisfies it.
type Dispatcher interface {
	Route(ctx context.Context, topic string, payload []byte) bool
}

// Metrics records connection and publish outcomes.
type Metrics interface {
	WriteConnectAttempt(attempt int, err error)
	WritePublish(topic string, ok bool)
}

// Logger defines the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopMetrics struct{}

func (noopMetrics) WriteConnectAttempt(int, error) {}
func (noopMetrics) WritePublish(string, bool)      {}

// Announcement is a message published after every successful connection.
type Announcement struct {
	Topic   string
	Payload string
}

// Options configures a Manager. Zero values select defaults.
type Options struct {
	// QoS is used for subscriptions and publishes.
	QoS byte

	// Backoff spaces out connect attempts. The zero value retries at once.
	Backoff Backoff

	// MaxPump bounds deliveries dispatched per Tick (default 64).
	MaxPump int

	// Online is published once each time the session comes up. Nil disables it.
	Online *Announcement

	Logger  Logger
	Metrics Metrics
}

// Manager owns the broker session and its ConnectionState.
type Manager struct {
	transport  Transport
	topics     []string
	dispatcher Dispatcher

	qos     byte
	backoff Backoff
	maxPump int
	online  *Announcement
	logger  Logger
	metrics Metrics

	state State

	// sleep waits between connect attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewManager creates a disconnected Manager.
//
// Parameters:
//   - transport: Broker connection, not yet connected
//   - topics: Command topics to subscribe to after every connect
//   - opts: QoS, backoff, announcement and collaborators
//
// Returns:
//   - *Manager: Manager in StateDisconnected; the first Tick connects
func NewManager(transport Transport, topics []string, opts Options) *Manager {
	m := &Manager{
		transport: transport,
		topics:    append([]string(nil), topics...),
		qos:       opts.QoS,
		backoff:   opts.Backoff,
		maxPump:   opts.MaxPump,
		online:    opts.Online,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		state:     StateDisconnected,
		sleep:     sleepContext,
	}
	if m.maxPump <= 0 {
		m.maxPump = defaultMaxPump
	}
	if m.logger == nil {
		m.logger = noopLogger{}
	}
	if m.metrics == nil {
		m.metrics = noopMetrics{}
	}
	return m
}

// SetDispatcher wires the receiver of inbound messages.
// Messages pumped while no dispatcher is set are dropped.
func (m *Manager) SetDispatcher(d Dispatcher) {
	m.dispatcher = d
}

// State returns the current connection state.
func (m *Manager) State() State {
	return m.state
}

// IsConnected reports whether the session is up and subscribed.
func (m *Manager) IsConnected() bool {
	return m.state == StateConnected
}

// Tick advances the session by one step.
//
// When not connected it runs a connection cycle, which blocks until the
// broker accepts a connection or ctx is cancelled. When connected it
// dispatches the deliveries already queued, up to MaxPump, without waiting
// for more.
func (m *Manager) Tick(ctx context.Context) {
	if m.state != StateConnected {
		m.connect(ctx)
		return
	}
	m.pump(ctx)
}

// connect runs one connection cycle.
func (m *Manager) connect(ctx context.Context) {
	m.state = StateConnecting

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			m.state = StateDisconnected
			return
		}

		err := m.transport.Connect(ctx)
		m.metrics.WriteConnectAttempt(attempt, err)
		if err == nil {
			m.logger.Info("connected to broker", "attempt", attempt)
			break
		}

		delay := m.backoff.Delay(attempt)
		m.logger.Warn("broker connection failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		if err := m.sleep(ctx, delay); err != nil {
			m.state = StateDisconnected
			return
		}
	}

	for _, topic := range m.topics {
		if err := m.transport.Subscribe(topic, m.qos); err != nil {
			m.logger.Error("subscribe failed, dropping session",
				"topic", topic,
				"error", err,
			)
			m.transport.Close()
			m.state = StateDisconnected
			return
		}
		m.logger.Debug("subscribed", "topic", topic, "qos", m.qos)
	}

	m.state = StateConnected
	m.logger.Info("session ready", "topics", len(m.topics))

	if m.online != nil {
		m.Publish(m.online.Topic, m.online.Payload)
	}
}

// pump dispatches queued deliveries until the queue is empty, the pump
// limit is reached or the session drops.
func (m *Manager) pump(ctx context.Context) {
	for range m.maxPump {
		msg, ok, err := m.transport.Poll()
		if err != nil {
			m.fault("receive", err)
			return
		}
		if !ok {
			return
		}

		if m.dispatcher == nil {
			m.logger.Debug("no dispatcher, dropping message", "topic", msg.Topic)
			continue
		}
		m.dispatcher.Route(ctx, msg.Topic, msg.Payload)

		// A publish made while handling the message may have found the session dead.
		if m.state != StateConnected {
			return
		}
	}
}

// Publish sends payload to topic once.
//
// It returns false without touching the transport when not connected, and
// false when the transport rejects the message. Failed publishes are never
// retried or queued. A transport-level failure drops the session so the
// next Tick reconnects.
func (m *Manager) Publish(topic, payload string) bool {
	if m.state != StateConnected {
		m.metrics.WritePublish(topic, false)
		m.logger.Error("publish failed",
			"topic", topic,
			"payload", payload,
			"error", mqtt.ErrNotConnected,
		)
		return false
	}

	err := m.transport.Publish(topic, m.qos, false, []byte(payload))
	m.metrics.WritePublish(topic, err == nil)
	if err != nil {
		m.logger.Error("publish failed",
			"topic", topic,
			"payload", payload,
			"error", err,
		)
		if mqtt.IsTransportFailure(err) {
			m.fault("publish", err)
		}
		return false
	}

	m.logger.Info("published", "topic", topic, "payload", payload)
	return true
}

// Close ends the session cleanly; the broker does not publish the will.
func (m *Manager) Close() {
	m.transport.Close()
	m.state = StateDisconnected
}

// fault drops the session after a transport error.
func (m *Manager) fault(op string, err error) {
	m.logger.Warn("broker session lost", "op", op, "error", err)
	m.transport.Close()
	m.state = StateDisconnected
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
